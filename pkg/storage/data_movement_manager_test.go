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
)

func TestDataMovementManager_AsyncWriteThenRead(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "dmm-ss1", host, 1<<20, Properties{}, wlog.Default())
	dmm := NewDataMovementManager(sim, "dmm1", host, svc.Mailbox().Name(), wlog.Default())

	reg := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	f := reg.NewDataFile("dmm-f1", 1024)
	loc := lf.At("dmm-ss1", "/data", f)

	replyMbox := sim.Mailboxes().Get("dmm-reply1")
	dmm.Mailbox().DPut(AsyncWriteRequest{Location: loc, NumBytes: f.SizeBytes, ReplyMbox: "dmm-reply1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	writeEvt, ok := evt.(WriteCompleted)
	require.True(t, ok)
	assert.True(t, writeEvt.Success)
	assert.True(t, svc.LookupFile(loc))

	dmm.Mailbox().DPut(AsyncReadRequest{Location: loc, NumBytes: f.SizeBytes, ReplyMbox: "dmm-reply1"})
	evt, err = replyMbox.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	readEvt, ok := evt.(ReadCompleted)
	require.True(t, ok)
	assert.True(t, readEvt.Success)
}

func TestDataMovementManager_CoalescesDuplicateReads(t *testing.T) {
	sim := simcore.New(context.Background())
	host := sim.AddHost(simcore.NewHost("h1", 2, 1e9, 1<<30, 1e9, sim.Clock()))
	svc := New(sim, "dmm-ss2", host, 1<<20, Properties{}, wlog.Default())
	dmm := NewDataMovementManager(sim, "dmm2", host, svc.Mailbox().Name(), wlog.Default())

	reg := datamodel.NewFileRegistry()
	lf := datamodel.NewLocationFactory()
	f := reg.NewDataFile("dmm-f2", 2048)
	loc := lf.At("dmm-ss2", "/data", f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, TransferViaMailbox(ctx, sim, svc.Mailbox().Name(), WriteRequest{Location: loc, NumBytes: f.SizeBytes}))

	replyA := sim.Mailboxes().Get("dmm-reply2a")
	replyB := sim.Mailboxes().Get("dmm-reply2b")

	dmm.Mailbox().DPut(AsyncReadRequest{Location: loc, NumBytes: f.SizeBytes, ReplyMbox: "dmm-reply2a"})
	dmm.Mailbox().DPut(AsyncReadRequest{Location: loc, NumBytes: f.SizeBytes, ReplyMbox: "dmm-reply2b"})

	evtA, err := replyA.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok := evtA.(ReadCompleted)
	require.True(t, ok)

	evtB, err := replyB.Get(ctx, sim.Clock(), 0)
	require.NoError(t, err)
	_, ok = evtB.(ReadCompleted)
	require.True(t, ok)
}
