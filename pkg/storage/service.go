package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

const tickInterval = 10 * time.Millisecond

// defaultBufferSize is the chunk size FileTransferThread splits a
// transfer into when Properties.BufferSize is left at zero.
const defaultBufferSize int64 = 4 << 20

// Properties carries every storage-service-wide knob, including the
// XRootD cache/overhead constants — the original system treats those as
// storage-service properties, not XRootD-only ones, so a plain service
// just never reads the cache-related fields.
type Properties struct {
	BufferSize              int64
	CacheMaxLifetime        time.Duration
	SearchBroadcastOverhead float64
	MessageOverhead         float64
	CacheLookupOverhead     float64
	UpdateCacheOverhead     float64

	// LookupOverhead is charged once per plain file-table lookup
	// (Read/Copy source check), distinct from the XRootD cache-probe
	// overheads above.
	LookupOverhead float64
}

// SimpleStorageService is an in-memory file store backed by one disk.
// The service is a simcore.Actor for its mailbox-facing API, but the
// filesystem table is also touched directly by FileTransferThread
// goroutines it spawns, so it is guarded by an explicit mutex rather
// than relying on single-actor-owns-its-state conventions.
type SimpleStorageService struct {
	sim   *simcore.Simulation
	id    string
	mbox  *simcore.Mailbox
	clock *simcore.Clock
	host  *simcore.Host
	log   wlog.Logger
	props Properties

	mu          sync.RWMutex
	fs          map[string]map[string]int64 // path -> fileID -> size
	occupied    int64
	capacity    int64
	copyInFlight map[*datamodel.FileLocation]bool
}

// New creates a storage service of the given capacity, attached to
// host's disk, and spawns its actor.
func New(sim *simcore.Simulation, id string, host *simcore.Host, capacity int64, props Properties, log wlog.Logger) *SimpleStorageService {
	if props.BufferSize <= 0 {
		props.BufferSize = defaultBufferSize
	}
	s := &SimpleStorageService{
		sim:      sim,
		id:       id,
		mbox:     sim.Mailboxes().Get(id),
		clock:    sim.Clock(),
		host:     host,
		log:      log.With("component", "storage").With("service_id", id),
		props:    props,
		fs:           make(map[string]map[string]int64),
		capacity:     capacity,
		copyInFlight: make(map[*datamodel.FileLocation]bool),
	}
	sim.Spawn(host, id, s.run, nil)
	return s
}

// Mailbox returns the service's mailbox.
func (s *SimpleStorageService) Mailbox() *simcore.Mailbox { return s.mbox }

// ID returns the service's registered name, used as a datamodel.StorageServiceID.
func (s *SimpleStorageService) ID() string { return s.id }

// Host returns the host this service's disk is attached to, so callers
// (e.g. the XRootD search overlay) can charge it for overhead work.
func (s *SimpleStorageService) Host() *simcore.Host { return s.host }

// Properties returns the service's configured Properties, including the
// XRootD search/cache overhead constants a fronting Node reads from.
func (s *SimpleStorageService) Properties() Properties { return s.props }

func (s *SimpleStorageService) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := s.mbox.Get(ctx, s.clock, tickInterval)
		if err != nil {
			if err == simcore.ErrNetworkTimeout {
				continue
			}
			return nil
		}
		req, ok := msg.(request)
		if !ok {
			continue
		}
		s.sim.Spawn(s.host, s.id+"-xfer", func(ctx context.Context) error {
			return s.handle(ctx, req)
		}, nil)
	}
}

func (s *SimpleStorageService) handle(ctx context.Context, req request) error {
	var cause failure.Cause

	switch p := req.payload.(type) {
	case ReadRequest:
		cause = s.doRead(ctx, p)
	case WriteRequest:
		cause = s.doWrite(ctx, p)
	case CopyRequest:
		cause = s.doCopy(ctx, p)
	case DeleteRequest:
		cause = s.doDelete(p)
	case RegistryAddRequest:
		cause = s.doRegistryAdd(p)
	case RegistryDeleteRequest:
		cause = s.doRegistryDelete(p)
	default:
		cause = &failure.FunctionalityNotAvailable{ServiceID: s.id, Name: "unknown request"}
	}

	replyBox := s.sim.Mailboxes().Get(req.replyMbox)
	replyBox.DPut(reply{err: cause})
	return nil
}

// LookupFile reports whether a file is present at loc.
func (s *SimpleStorageService) LookupFile(loc *datamodel.FileLocation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files, ok := s.fs[loc.Path]
	if !ok {
		return false
	}
	_, ok = files[loc.File.ID]
	return ok
}

func (s *SimpleStorageService) doRead(ctx context.Context, req ReadRequest) failure.Cause {
	if s.props.LookupOverhead > 0 {
		if err := s.host.ComputeFor(ctx, s.props.LookupOverhead); err != nil {
			return toCause(err, s.host.ID)
		}
	}
	if !s.LookupFile(req.Location) {
		return &failure.FileNotFound{FileID: req.Location.File.ID, Location: req.Location.Path}
	}
	if err := transferChunked(ctx, s.host, req.NumBytes, s.props.BufferSize, false); err != nil {
		return toCause(err, s.host.ID)
	}
	return nil
}

func (s *SimpleStorageService) doWrite(ctx context.Context, req WriteRequest) failure.Cause {
	if !isValidDirectoryPath(req.Location.Path) {
		return &failure.InvalidDirectoryPath{Service: s.id, Path: req.Location.Path}
	}

	s.mu.Lock()
	if s.occupied+req.NumBytes > s.capacity {
		s.mu.Unlock()
		return &failure.StorageServiceNotEnoughSpace{FileID: req.Location.File.ID, Service: s.id}
	}
	s.mu.Unlock()

	if err := transferChunked(ctx, s.host, req.NumBytes, s.props.BufferSize, true); err != nil {
		return toCause(err, s.host.ID)
	}

	s.mu.Lock()
	if s.fs[req.Location.Path] == nil {
		s.fs[req.Location.Path] = make(map[string]int64)
	}
	s.fs[req.Location.Path][req.Location.File.ID] = req.NumBytes
	s.occupied += req.NumBytes
	s.mu.Unlock()
	return nil
}

func (s *SimpleStorageService) doCopy(ctx context.Context, req CopyRequest) failure.Cause {
	if !isValidDirectoryPath(req.Dst.Path) {
		return &failure.InvalidDirectoryPath{Service: s.id, Path: req.Dst.Path}
	}

	if s.props.LookupOverhead > 0 {
		if err := s.host.ComputeFor(ctx, s.props.LookupOverhead); err != nil {
			return toCause(err, s.host.ID)
		}
	}
	if !s.LookupFile(req.Src) {
		return &failure.FileNotFound{FileID: req.Src.File.ID, Location: req.Src.Path}
	}
	size := req.Src.File.SizeBytes

	s.mu.Lock()
	if s.copyInFlight[req.Dst] {
		s.mu.Unlock()
		return &failure.FileAlreadyBeingCopied{FileID: req.Dst.File.ID, Src: req.Src.Path, Dst: req.Dst.Path}
	}
	if s.occupied+size > s.capacity {
		s.mu.Unlock()
		return &failure.StorageServiceNotEnoughSpace{FileID: req.Dst.File.ID, Service: s.id}
	}
	s.copyInFlight[req.Dst] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.copyInFlight, req.Dst)
		s.mu.Unlock()
	}()

	if err := transferChunked(ctx, s.host, size, s.props.BufferSize, false); err != nil {
		return toCause(err, s.host.ID)
	}
	if err := transferChunked(ctx, s.host, size, s.props.BufferSize, true); err != nil {
		return toCause(err, s.host.ID)
	}

	s.mu.Lock()
	if s.fs[req.Dst.Path] == nil {
		s.fs[req.Dst.Path] = make(map[string]int64)
	}
	s.fs[req.Dst.Path][req.Dst.File.ID] = size
	s.occupied += size
	s.mu.Unlock()
	return nil
}

func (s *SimpleStorageService) doDelete(req DeleteRequest) failure.Cause {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.fs[req.Location.Path]
	if !ok {
		return &failure.FileNotFound{FileID: req.Location.File.ID, Location: req.Location.Path}
	}
	size, ok := files[req.Location.File.ID]
	if !ok {
		return &failure.FileNotFound{FileID: req.Location.File.ID, Location: req.Location.Path}
	}
	delete(files, req.Location.File.ID)
	s.occupied -= size
	return nil
}

func (s *SimpleStorageService) doRegistryAdd(req RegistryAddRequest) failure.Cause {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fs[req.Location.Path] == nil {
		s.fs[req.Location.Path] = make(map[string]int64)
	}
	s.fs[req.Location.Path][req.File.ID] = req.File.SizeBytes
	return nil
}

func (s *SimpleStorageService) doRegistryDelete(req RegistryDeleteRequest) failure.Cause {
	s.mu.Lock()
	defer s.mu.Unlock()
	if files, ok := s.fs[req.Location.Path]; ok {
		delete(files, req.File.ID)
	}
	return nil
}

// isValidDirectoryPath rejects anything but an absolute logical path, the
// only form datamodel.LocationFactory ever produces.
func isValidDirectoryPath(path string) bool {
	return strings.HasPrefix(path, "/")
}

func toCause(err error, hostID string) failure.Cause {
	if cause, ok := err.(failure.Cause); ok {
		return cause
	}
	if err == simcore.ErrHostDown {
		return &failure.HostError{HostID: hostID}
	}
	return &failure.FatalFailure{Message: err.Error()}
}
