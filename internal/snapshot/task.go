// Package snapshot implements the one-shot snapshot upload task and its
// long-lived manager (spec §4.D, §4.E).
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/nvrsync/camsync/internal/descriptor"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
	"github.com/nvrsync/camsync/internal/upload"
)

// MaxAttempts is the snapshot task's attempt budget — large, because a
// snapshot has no alternating-name fallback: it either lands or it doesn't.
const MaxAttempts = 128

// DefaultRetrySleep is the pause between attempt rounds.
const DefaultRetrySleep = 2 * time.Second

// Task uploads a single snapshot to every configured destination through
// one run of the upload primitive with a budget of MaxAttempts attempt
// rounds, and returns once with the outcome.
type Task struct {
	Descriptors []descriptor.Descriptor
	RetrySleep  time.Duration
	Now         func() time.Time
}

// Run executes the upload-process for snap and returns its terminal error
// (nil on success). Callers that need fire-and-forget semantics should run
// this in its own goroutine and use the manager below.
func (t Task) Run(ctx context.Context, log logger.Logger, snap review.Snapshot) error {
	now := t.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	retrySleep := t.RetrySleep
	if retrySleep == 0 {
		retrySleep = DefaultRetrySleep
	}

	fileName := fmt.Sprintf("Snapshot-%s-%s-%s.jpg",
		snap.CameraName, started.Format("2006-01-02_15-04-05Z0700"), snap.ObjectName)
	uploadDir := started.Format("2006-01-02")

	file := upload.File{
		Bytes:       snap.JPEGBytes,
		FileName:    fileName,
		UploadDir:   uploadDir,
		Description: fmt.Sprintf("snapshot %s/%s", snap.CameraName, snap.ObjectName),
	}

	return upload.Run(ctx, log, upload.Upload(file), t.Descriptors, MaxAttempts, retrySleep)
}
