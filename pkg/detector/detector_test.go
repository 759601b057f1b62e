package detector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/detector"
)

func TestHostStateChangeDetector_NotifiesListeners(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e9, sim.Clock()))

	d := detector.New(wlog.Default())
	d.Watch(host)

	seen := make(chan bool, 1)
	d.OnChange(func(hostID string, down bool) {
		require.Equal(t, "h1", hostID)
		seen <- down
	})

	sim.TurnHostOff("h1")

	select {
	case down := <-seen:
		require.True(t, down)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestServiceTerminationDetector_WaitReturnsAfterActorExits(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 1, 1e9, 1<<30, 1e9, sim.Clock()))

	actor := sim.Spawn(host, "svc", func(ctx context.Context) error {
		return nil
	}, nil)

	d := detector.Watch("svc", actor)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := d.Wait(ctx)
	require.Error(t, err)
	require.Equal(t, "ServiceIsDown", err.(interface{ Kind() string }).Kind())
	require.True(t, d.IsDown())
}
