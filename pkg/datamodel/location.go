package datamodel

import (
	"path/filepath"
	"strings"
	"sync"
)

// StorageServiceID identifies a storage service by its registered name.
// Kept as a distinct type rather than a bare string so location keys
// can't accidentally collide with path strings.
type StorageServiceID string

// ScratchServiceID is the sentinel StorageServiceID used by ScratchLocation
// to mean "resolve against whatever compute service ends up running this
// action", deferred until Resolve is called.
const ScratchServiceID StorageServiceID = "$scratch$"

// FileLocation names a (storage service, path, file) triple. It is never
// constructed directly — only LocationFactory.At and ScratchLocation
// produce one, so that two calls describing the same place always return
// the identical pointer.
type FileLocation struct {
	Storage   StorageServiceID
	Path      string
	File      *DataFile
	IsScratch bool
}

type locationKey struct {
	storage StorageServiceID
	path    string
	fileID  string
}

// LocationFactory is the flyweight registry backing FileLocation
// construction. One factory is shared by an entire simulation.
type LocationFactory struct {
	cache sync.Map // locationKey -> *FileLocation
}

// NewLocationFactory creates an empty factory.
func NewLocationFactory() *LocationFactory {
	return &LocationFactory{}
}

// At returns the canonical FileLocation for (ss, path, file), minting one
// on first use and returning the cached pointer thereafter.
func (lf *LocationFactory) At(ss StorageServiceID, path string, file *DataFile) *FileLocation {
	key := locationKey{storage: ss, path: canonicalize(path), fileID: file.ID}
	if v, ok := lf.cache.Load(key); ok {
		return v.(*FileLocation)
	}
	loc := &FileLocation{Storage: ss, Path: key.path, File: file}
	actual, _ := lf.cache.LoadOrStore(key, loc)
	return actual.(*FileLocation)
}

// ScratchLocation returns the canonical scratch-space sentinel location
// for file, deferred until Resolve rewrites it against a running job's
// compute service.
func (lf *LocationFactory) ScratchLocation(file *DataFile) *FileLocation {
	key := locationKey{storage: ScratchServiceID, path: "/", fileID: file.ID}
	if v, ok := lf.cache.Load(key); ok {
		return v.(*FileLocation)
	}
	loc := &FileLocation{Storage: ScratchServiceID, Path: "/", File: file, IsScratch: true}
	actual, _ := lf.cache.LoadOrStore(key, loc)
	return actual.(*FileLocation)
}

// Resolve rewrites a scratch location against the scratch storage
// attached to computeServiceID, returning a concrete, non-scratch
// location minted from the same factory. Non-scratch locations are
// returned unchanged.
func (lf *LocationFactory) Resolve(loc *FileLocation, computeServiceID string) *FileLocation {
	if !loc.IsScratch {
		return loc
	}
	scratchSS := StorageServiceID("scratch@" + computeServiceID)
	return lf.At(scratchSS, "/"+loc.File.ID, loc.File)
}

func canonicalize(path string) string {
	clean := filepath.Clean("/" + path)
	if !strings.HasSuffix(clean, "/") && clean != "/" {
		return clean
	}
	return clean
}
