package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

func newSoleJob(t *testing.T, id string) *action.CompoundJob {
	t.Helper()
	job := action.NewCompoundJob(id, id)
	_, err := job.AddComputeAction("c1", "c1", 1e9, 1, 1, 0, datamodel.Amdahl(0))
	require.NoError(t, err)
	return job
}

// TestHTCondorComputeService_LocalUniverse mirrors spec.md §6: a
// submission with no -universe argument (or -universe != "grid") runs
// against the service's own local pool.
func TestHTCondorComputeService_LocalUniverse(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	local := New(sim, "local-pool", []*simcore.Host{host}, "storage-unused", DefaultProperties(), wlog.Default())
	htHost := sim.AddHost(simcore.NewHost("ht-host", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	ht := NewHTCondorComputeService(sim, htHost, "condor0", local, nil, wlog.Default())

	job := newSoleJob(t, "job-local")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replyMbox := sim.Mailboxes().Get("reply-local")
	ht.Mailbox().DPut(SubmitCompoundJobRequest{Job: job, ReplyMbox: "reply-local"})

	msg, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok := msg.(Ack)
	require.True(t, ok, "expected Ack, got %T", msg)

	msg, err = replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok = msg.(CompoundJobDone)
	assert.True(t, ok, "expected CompoundJobDone, got %T", msg)
}

// TestHTCondorComputeService_GridUniverseRoutesToChild confirms a
// grid-universe submission naming a known batch child is forwarded to
// it verbatim rather than admitted locally.
func TestHTCondorComputeService_GridUniverseRoutesToChild(t *testing.T) {
	sim := simcore.New(context.Background())
	childHost := sim.AddHost(simcore.NewHost("h2", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	child := New(sim, "batch-pool", []*simcore.Host{childHost}, "storage-unused", DefaultProperties(), wlog.Default())

	htHost := sim.AddHost(simcore.NewHost("ht-host", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	ht := NewHTCondorComputeService(sim, htHost, "condor1", nil, map[string]string{
		"batch1": child.Mailbox().Name(),
	}, wlog.Default())

	job := newSoleJob(t, "job-grid")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replyMbox := sim.Mailboxes().Get("reply-grid")
	ht.Mailbox().DPut(SubmitCompoundJobRequest{
		Job:       job,
		Args:      map[string]string{"-universe": "grid", "-service": "batch1"},
		ReplyMbox: "reply-grid",
	})

	msg, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok := msg.(Ack)
	require.True(t, ok, "expected Ack from the routed-to batch child, got %T", msg)
}

// TestHTCondorComputeService_UnknownBatchChild rejects a grid-universe
// submission naming a batch child the composite service doesn't know.
func TestHTCondorComputeService_UnknownBatchChild(t *testing.T) {
	sim := simcore.New(context.Background())
	htHost := sim.AddHost(simcore.NewHost("ht-host", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	ht := NewHTCondorComputeService(sim, htHost, "condor2", nil, map[string]string{}, wlog.Default())

	job := newSoleJob(t, "job-unknown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replyMbox := sim.Mailboxes().Get("reply-unknown")
	ht.Mailbox().DPut(SubmitCompoundJobRequest{
		Job:       job,
		Args:      map[string]string{"-universe": "grid", "-service": "nope"},
		ReplyMbox: "reply-unknown",
	})

	msg, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	rejected, ok := msg.(AdmissionRejected)
	require.True(t, ok, "expected AdmissionRejected, got %T", msg)
	_, isUnsupported := rejected.Cause.(*failure.JobTypeNotSupported)
	assert.True(t, isUnsupported)
}

// TestHTCondorComputeService_UnrecognizedArgRejected rejects a
// submission carrying a service-specific-args key the composite service
// doesn't understand.
func TestHTCondorComputeService_UnrecognizedArgRejected(t *testing.T) {
	sim := simcore.New(context.Background())
	htHost := sim.AddHost(simcore.NewHost("ht-host", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	ht := NewHTCondorComputeService(sim, htHost, "condor3", nil, nil, wlog.Default())

	job := newSoleJob(t, "job-bad-arg")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replyMbox := sim.Mailboxes().Get("reply-bad-arg")
	ht.Mailbox().DPut(SubmitCompoundJobRequest{
		Job:       job,
		Args:      map[string]string{"-bogus": "x"},
		ReplyMbox: "reply-bad-arg",
	})

	msg, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	rejected, ok := msg.(AdmissionRejected)
	require.True(t, ok, "expected AdmissionRejected, got %T", msg)
	_, isNotAllowed := rejected.Cause.(*failure.NotAllowed)
	assert.True(t, isNotAllowed)
}

// TestHTCondorComputeService_NoLocalPoolRejectsNonGrid confirms a
// composite service configured without a local pool rejects any
// non-grid-universe submission instead of silently dropping it.
func TestHTCondorComputeService_NoLocalPoolRejectsNonGrid(t *testing.T) {
	sim := simcore.New(context.Background())
	htHost := sim.AddHost(simcore.NewHost("ht-host", 1, 1e9, 1<<30, 1e8, sim.Clock()))
	ht := NewHTCondorComputeService(sim, htHost, "condor4", nil, nil, wlog.Default())

	job := newSoleJob(t, "job-no-local")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	replyMbox := sim.Mailboxes().Get("reply-no-local")
	ht.Mailbox().DPut(SubmitCompoundJobRequest{Job: job, ReplyMbox: "reply-no-local"})

	msg, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	rejected, ok := msg.(AdmissionRejected)
	require.True(t, ok, "expected AdmissionRejected, got %T", msg)
	_, isUnsupported := rejected.Cause.(*failure.JobTypeNotSupported)
	assert.True(t, isUnsupported)
}
