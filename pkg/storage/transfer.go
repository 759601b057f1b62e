package storage

import (
	"context"

	"github.com/wrenchsim/wrench/internal/simcore"
)

// transferChunked is FileTransferThread's core: it charges a host's
// disk for numBytes worth of work, split into bufferSize chunks rather
// than one lump charge, so a cancelled transfer stops roughly where it
// was interrupted instead of all-or-nothing.
func transferChunked(ctx context.Context, host *simcore.Host, numBytes, bufferSize int64, write bool) error {
	if numBytes <= 0 {
		return nil
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	remaining := numBytes
	for remaining > 0 {
		chunk := bufferSize
		if remaining < chunk {
			chunk = remaining
		}
		var err error
		if write {
			err = host.Disk.Write(ctx, chunk)
		} else {
			err = host.Disk.Read(ctx, chunk)
		}
		if err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}
