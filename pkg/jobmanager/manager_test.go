package jobmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/failure"
)

func TestJobManager_DispatchAndComplete(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 4, 1e9, 1<<30, 1e8, sim.Clock()))

	jm := New(sim, host, "jm-mbox", wlog.Default())

	serviceMbox := sim.Mailboxes().Get("svc-mbox")
	replyMbox := sim.Mailboxes().Get("reply-mbox")

	job := action.NewCompoundJob("job1", "test")
	_, err := job.AddSleepAction("a", "a", time.Millisecond)
	require.NoError(t, err)

	jm.Mailbox().DPut(SubmitJob{
		Job:         job,
		ServiceID:   "svc",
		ServiceMbox: "svc-mbox",
		ReplyMbox:   "reply-mbox",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := serviceMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	submitReq, ok := req.(SubmitCompoundJobRequest)
	require.True(t, ok)
	assert.Equal(t, "job1", submitReq.Job.ID)

	sim.Mailboxes().Get(submitReq.ReplyMbox).DPut(Ack{JobID: "job1"})

	jm.Mailbox().DPut(CompoundJobDone{JobID: "job1"})

	evt, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok = evt.(CompoundJobCompleted)
	assert.True(t, ok)
}

func TestJobManager_ShutdownFailsPending(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 4, 1e9, 1<<30, 1e8, sim.Clock()))
	jm := New(sim, host, "jm-mbox2", wlog.Default())

	replyMbox := sim.Mailboxes().Get("reply-mbox2")
	job := action.NewCompoundJob("job2", "test")

	jm.Mailbox().DPut(SubmitJob{
		Job:       job,
		ReplyMbox: "reply-mbox2",
	})
	jm.Mailbox().DPut(Shutdown{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	failedEvt, ok := evt.(CompoundJobFailedEvent)
	require.True(t, ok)
	_, isTerminated := failedEvt.Cause.(*failure.JobManagerTerminated)
	assert.True(t, isTerminated)
}

func TestJobManager_PilotJobLifecycle(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 4, 1e9, 1<<30, 1e8, sim.Clock()))
	jm := New(sim, host, "jm-mbox3", wlog.Default())

	replyMbox := sim.Mailboxes().Get("pilot-reply")
	pilot := CreatePilotJob("pilot1", "svc-mbox", 10*time.Millisecond, "pilot-reply")

	jm.Mailbox().DPut(SubmitPilotJob{Pilot: pilot})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	started, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	startedEvt, ok := started.(PilotJobStarted)
	require.True(t, ok)
	assert.Equal(t, "pilot1", startedEvt.PilotID)

	expired, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	expiredEvt, ok := expired.(PilotJobExpired)
	require.True(t, ok)
	assert.Equal(t, "pilot1", expiredEvt.PilotID)
}

func TestJobManager_PilotJobTerminatedEarlySuppressesExpiry(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 4, 1e9, 1<<30, 1e8, sim.Clock()))
	jm := New(sim, host, "jm-mbox4", wlog.Default())

	replyMbox := sim.Mailboxes().Get("pilot-reply2")
	pilot := CreatePilotJob("pilot2", "svc-mbox", time.Hour, "pilot-reply2")

	jm.Mailbox().DPut(SubmitPilotJob{Pilot: pilot})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	started, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok := started.(PilotJobStarted)
	require.True(t, ok)

	jm.Mailbox().DPut(TerminatePilotJob{PilotID: "pilot2"})

	_, err = replyMbox.Get(ctx, sim.Clock(), 20*time.Millisecond)
	assert.ErrorIs(t, err, simcore.ErrNetworkTimeout, "no PilotJobExpired should follow an early termination")
}
