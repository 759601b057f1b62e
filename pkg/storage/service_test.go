package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/internal/wlog"
	"github.com/wrenchsim/wrench/pkg/datamodel"
	"github.com/wrenchsim/wrench/pkg/failure"
)

func TestSimpleStorageService_WriteThenRead(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "ss1", host, 1<<20, Properties{}, wlog.Default())

	reg := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	f := reg.NewDataFile("f1", 1024)
	loc := lf.At("ss1", "/data", f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), WriteRequest{Location: loc, NumBytes: f.SizeBytes})
	require.NoError(t, err)
	assert.True(t, svc.LookupFile(loc))

	err = TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), ReadRequest{Location: loc, NumBytes: f.SizeBytes})
	require.NoError(t, err)
}

func TestSimpleStorageService_ReadMissing(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "ss2", host, 1<<20, Properties{}, wlog.Default())

	reg := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	f := reg.NewDataFile("missing", 1024)
	loc := lf.At("ss2", "/data", f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), ReadRequest{Location: loc, NumBytes: 1024})
	require.Error(t, err)
	cause, ok := err.(failure.Cause)
	require.True(t, ok)
	assert.Equal(t, "FileNotFound", cause.Kind())
}

func TestSimpleStorageService_WriteRejectsInvalidPath(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "ss4", host, 1<<20, Properties{}, wlog.Default())

	reg := datamodel.NewFileRegistry()
	f := reg.NewDataFile("bad-path", 1024)
	loc := &datamodel.FileLocation{Storage: "ss4", Path: "relative/path", File: f}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), WriteRequest{Location: loc, NumBytes: 1024})
	require.Error(t, err)
	cause, ok := err.(failure.Cause)
	require.True(t, ok)
	assert.Equal(t, "InvalidDirectoryPath", cause.Kind())
}

func TestSimpleStorageService_WriteExceedsCapacity(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "ss3", host, 512, Properties{}, wlog.Default())

	reg := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	f := reg.NewDataFile("big", 1024)
	loc := lf.At("ss3", "/data", f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), WriteRequest{Location: loc, NumBytes: 1024})
	require.Error(t, err)
	cause, ok := err.(failure.Cause)
	require.True(t, ok)
	assert.Equal(t, "StorageServiceNotEnoughSpace", cause.Kind())
}
