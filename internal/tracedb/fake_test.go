package tracedb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchsim/wrench/pkg/controller"
	"github.com/wrenchsim/wrench/pkg/failure"
)

func TestFakeSink_RecordsEvents(t *testing.T) {
	sink := NewFakeSink()

	require.NoError(t, sink.Record(context.Background(), controller.Event{
		Kind: controller.CompoundJobCompleted, JobID: "j1",
	}))
	require.NoError(t, sink.Record(context.Background(), controller.Event{
		Kind: controller.CompoundJobFailed, JobID: "j2", Cause: &failure.JobKilled{JobID: "j2"},
	}))

	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, "j1", sink.Records[0].JobID)
	assert.Equal(t, "j2", sink.Records[1].JobID)
	require.NoError(t, sink.Close())
}
