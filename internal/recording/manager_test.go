package recording

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrsync/camsync/internal/descriptor"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
)

// countingFactory builds tasks against api/descriptors and records how many
// distinct review ids it was asked to build a Task for.
type countingFactory struct {
	mu          sync.Mutex
	builtIDs    []string
	api         ClipFetcher
	descriptors []descriptor.Descriptor
	retrySleep  time.Duration
	maxRetry    uint32
	retryDur    time.Duration
}

func (f *countingFactory) build(reviewID string) *Task {
	f.mu.Lock()
	f.builtIDs = append(f.builtIDs, reviewID)
	f.mu.Unlock()

	task := NewTask(reviewID, f.descriptors, f.api, f.retrySleep)
	if f.maxRetry != 0 {
		task.MaxRetryAttempts = f.maxRetry
	}
	if f.retryDur != 0 {
		task.RetryDuration = f.retryDur
	}
	return task
}

func (f *countingFactory) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, got := range f.builtIDs {
		if got == id {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, api ClipFetcher) (*Manager, *countingFactory) {
	t.Helper()
	root := t.TempDir()
	factory := &countingFactory{
		api:         api,
		descriptors: []descriptor.Descriptor{descriptor.Local{Path: root}},
		retrySleep:  time.Millisecond,
		maxRetry:    10,
		retryDur:    50 * time.Millisecond,
	}
	return NewManager(factory.build), factory
}

func TestManagerLaunchesOneTaskPerNewReviewID(t *testing.T) {
	fetcher := &scriptedFetcher{errs: []error{assertErr, assertErr, assertErr, assertErr}}
	m, factory := newTestManager(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, logger.Discard())

	ack := make(chan struct{})
	m.SubmitReview(review.Review{CameraName: "camA", ID: "rev-1", StartTime: 100, Type: review.TypeNew}, ack)

	select {
	case <-ack:
	case <-time.After(2 * time.Second):
		t.Fatal("ack never arrived for first review on a new id")
	}

	assert.Equal(t, 1, factory.count("rev-1"))
	assert.Equal(t, 1, m.GetTaskCount())
}

func TestManagerRoutesSecondUpdateToExistingTask(t *testing.T) {
	fetcher := &scriptedFetcher{errs: []error{assertErr, assertErr, assertErr, assertErr, assertErr}}
	m, factory := newTestManager(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, logger.Discard())

	firstAck := make(chan struct{})
	m.SubmitReview(review.Review{CameraName: "camA", ID: "rev-2", StartTime: 100, Type: review.TypeNew}, firstAck)
	<-firstAck

	secondAck := make(chan struct{})
	m.SubmitReview(review.Review{CameraName: "camA", ID: "rev-2", StartTime: 100, Type: review.TypeUpdate}, secondAck)

	select {
	case <-secondAck:
	case <-time.After(2 * time.Second):
		t.Fatal("ack never arrived for update to an existing id")
	}

	assert.Equal(t, 1, factory.count("rev-2"), "a second review for the same id must not spawn a second task")
	assert.Equal(t, 1, m.GetTaskCount())
}

func TestManagerGetTaskCountDropsToZeroAfterCompletion(t *testing.T) {
	fetcher := &scriptedFetcher{clips: [][]byte{[]byte("C0")}}
	m, _ := newTestManager(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, logger.Discard())

	end := 130.0
	ack := make(chan struct{})
	m.SubmitReview(review.Review{CameraName: "camA", ID: "rev-3", StartTime: 100, EndTime: &end, Type: review.TypeEnd}, ack)
	<-ack

	require.Eventually(t, func() bool {
		return m.GetTaskCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "task count should drop to zero once the review reaches Done")
}

func TestManagerStopDrainsWithoutCancellingRunningTasks(t *testing.T) {
	fetcher := &scriptedFetcher{clips: [][]byte{[]byte("C0")}}
	m, _ := newTestManager(t, fetcher)

	ctx := context.Background()
	runDone := make(chan struct{})
	go func() {
		m.Run(ctx, logger.Discard())
		close(runDone)
	}()

	end := 130.0
	ack := make(chan struct{})
	m.SubmitReview(review.Review{CameraName: "camA", ID: "rev-4", StartTime: 100, EndTime: &end, Type: review.TypeEnd}, ack)
	<-ack

	m.Stop()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not drain and return after Stop")
	}
}
