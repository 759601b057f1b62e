package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/action"
	"github.com/wrenchsim/wrench/pkg/compute"
	"github.com/wrenchsim/wrench/pkg/controller"
	"github.com/wrenchsim/wrench/pkg/jobmanager"
)

func TestController_EndToEndCompoundJob(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e9, sim.Clock()))

	jm := jobmanager.New(sim, host, "jm", wlog.Default())
	cs := compute.New(sim, "cs", []*simcore.Host{host}, "storage", compute.DefaultProperties(), wlog.Default())
	ctrl := controller.New(sim, jm, "ctrl")

	job := action.NewCompoundJob("j1", "test")
	_, err := job.AddSleepAction("a", "a", time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, ctrl.Submit(ctx, job, cs.Mailbox().Name(), nil))

	evt, err := ctrl.WaitForNextEvent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, controller.CompoundJobCompleted, evt.Kind)
	assert.Equal(t, "j1", evt.JobID)
}

func TestController_PilotJobExpiredCarriesJobTimeoutCause(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e9, sim.Clock()))
	jm := jobmanager.New(sim, host, "jm3", wlog.Default())
	ctrl := controller.New(sim, jm, "ctrl3")

	pilot := jobmanager.CreatePilotJob("pilot1", "svc-unused", time.Millisecond, ctrl.Mailbox().Name())
	jm.Mailbox().DPut(jobmanager.SubmitPilotJob{Pilot: pilot})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started, err := ctrl.WaitForNextEvent(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, controller.PilotJobStarted, started.Kind)

	expired, err := ctrl.WaitForNextEvent(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, controller.PilotJobExpired, expired.Kind)
	require.NotNil(t, expired.Cause)
	assert.Equal(t, "JobTimeout", expired.Cause.Kind())
}

func TestController_TimeoutYieldsEventNone(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e9, sim.Clock()))
	jm := jobmanager.New(sim, host, "jm2", wlog.Default())
	ctrl := controller.New(sim, jm, "ctrl2")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := ctrl.WaitForNextEvent(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, controller.EventNone, evt.Kind)
}
