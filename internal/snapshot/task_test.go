package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrsync/camsync/internal/descriptor"
	"github.com/nvrsync/camsync/internal/destination"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTaskRunUploadsWithDerivedFileName(t *testing.T) {
	root := t.TempDir()
	d := descriptor.Local{Path: root}
	started := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	task := Task{
		Descriptors: []descriptor.Descriptor{d},
		RetrySleep:  time.Millisecond,
		Now:         fixedClock(started),
	}

	snap := review.Snapshot{CameraName: "camX", ObjectName: "person", JPEGBytes: []byte("jpeg-bytes")}
	err := task.Run(context.Background(), logger.Discard(), snap)
	require.NoError(t, err)

	local := destination.NewLocal(d)
	require.NoError(t, local.Init(context.Background()))
	names, err := local.Ls(context.Background(), "2026-07-31")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "Snapshot-camX-")
	assert.Contains(t, names[0], "-person.jpg")
}

func TestTaskRunFailsOnContextCancellation(t *testing.T) {
	d := descriptor.Remote{
		Username:   "cam",
		Host:       "example.invalid",
		RemotePath: "/uploads",
		Identity:   descriptor.OnDiskIdentity{Path: "/nonexistent"},
	}
	task := Task{
		Descriptors: []descriptor.Descriptor{d},
		RetrySleep:  time.Millisecond,
		Now:         fixedClock(time.Now()),
	}

	snap := review.Snapshot{CameraName: "camX", ObjectName: "person", JPEGBytes: []byte("x")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := task.Run(ctx, logger.Discard(), snap)
	assert.Error(t, err)
}
