// Package recording implements the single-review upload state machine and
// its supervising manager (spec §4.F, §4.G).
package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/nvrsync/camsync/internal/descriptor"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
	"github.com/nvrsync/camsync/internal/upload"
)

// Defaults per spec §4.F.
const (
	DefaultMaxRetryAttempts  = 60
	DefaultRetryDuration     = 60 * time.Second
	DefaultMaxUploadAttempts = 3
	DefaultMaxDeleteAttempts = 5
)

// ClipFetcher is the subset of nvrapi.Client a recording task needs.
type ClipFetcher interface {
	RecordingClip(ctx context.Context, camera string, startTS, endTS int64) ([]byte, error)
}

// ErrEmptyVideoReturned means the NVR had no clip for the requested window
// yet — a retriable condition, not a hard failure.
var ErrEmptyVideoReturned = camerrors.NewStd("nvr returned no video for this review window")

// ErrRecordingUploadFailed wraps exhaustion of the upload primitive while
// storing a recording clip.
var ErrRecordingUploadFailed = camerrors.NewStd("recording clip upload exhausted retries")

// Conclusion is a recording task's terminal outcome.
type Conclusion string

const (
	Done    Conclusion = "done"
	NotDone Conclusion = "not_done"
)

// Task runs the state machine for a single review id end to end: it
// receives review updates on a channel, drives an upload-process per
// update (cancelling the prior one by construction), and retries on its
// own timer between updates.
type Task struct {
	ID                string
	Descriptors       []descriptor.Descriptor
	API               ClipFetcher
	RetrySleep        time.Duration
	MaxRetryAttempts  uint32
	RetryDuration     time.Duration
	MaxUploadAttempts int
	MaxDeleteAttempts int
	Now               func() time.Time
}

// NewTask returns a Task with spec §4.F's defaults applied; callers then
// override whichever fields their configuration specifies. MaxRetryAttempts
// is meaningfully zero (spec §8: "max_retry_attempts = 0 causes immediate
// NotDone on first failure"), so defaulting happens once here rather than
// on every read — a field left at its Go zero value after construction is
// a deliberate caller choice, not "unset."
func NewTask(id string, descriptors []descriptor.Descriptor, api ClipFetcher, retrySleep time.Duration) *Task {
	return &Task{
		ID:                id,
		Descriptors:       descriptors,
		API:               api,
		RetrySleep:        retrySleep,
		MaxRetryAttempts:  DefaultMaxRetryAttempts,
		RetryDuration:     DefaultRetryDuration,
		MaxUploadAttempts: DefaultMaxUploadAttempts,
		MaxDeleteAttempts: DefaultMaxDeleteAttempts,
	}
}

func (t *Task) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Task) maxRetryAttempts() uint32  { return t.MaxRetryAttempts }
func (t *Task) retryDuration() time.Duration { return t.RetryDuration }
func (t *Task) maxUploadAttempts() int    { return t.MaxUploadAttempts }
func (t *Task) maxDeleteAttempts() int    { return t.MaxDeleteAttempts }

// currentSuffix and alternateSuffix implement the alternating-name XOR
// discipline (spec §4.F, §9): suffix(flip) = "-1" iff alternativeUpload
// XOR flip, else "-0". currentSuffix is suffix(false); alternateSuffix is
// suffix(true) — "the other file."
func currentSuffix(alternativeUpload bool) string {
	if alternativeUpload {
		return "-1"
	}
	return "-0"
}

func alternateSuffix(alternativeUpload bool) string {
	if alternativeUpload {
		return "-0"
	}
	return "-1"
}

func uploadDirFor(startTime float64) string {
	return time.Unix(int64(startTime), 0).UTC().Format("2006-01-02")
}

func clipFileName(camera string, startTime float64, suffix string) string {
	ts := time.Unix(int64(startTime), 0).Local().Format("2006-01-02_15-04-05Z0700")
	return fmt.Sprintf("RecordingClip-%s-%s%s.mp4", camera, ts, suffix)
}

type processOutcome struct {
	generation uint64
	err        error
}

// runUploadProcess executes one full attempt at one review version: fetch
// clip, upload it under the current suffix, delete the alternate suffix's
// file. Reports its outcome on results tagged with generation so a
// superseded process (one whose review update has since been replaced)
// can be told apart from the live one by the event loop.
func (t *Task) runUploadProcess(ctx context.Context, log logger.Logger, rev review.Review, alternativeUpload bool, generation uint64, results chan<- processOutcome) {
	endTime := t.now().Unix()
	if rev.EndTime != nil {
		endTime = int64(*rev.EndTime)
	}

	clip, err := t.API.RecordingClip(ctx, rev.CameraName, int64(rev.StartTime), endTime)
	if err != nil {
		results <- processOutcome{generation: generation, err: err}
		return
	}
	if len(clip) == 0 {
		results <- processOutcome{generation: generation, err: ErrEmptyVideoReturned}
		return
	}

	uploadDir := uploadDirFor(rev.StartTime)
	file := upload.File{
		Bytes:       clip,
		FileName:    clipFileName(rev.CameraName, rev.StartTime, currentSuffix(alternativeUpload)),
		UploadDir:   uploadDir,
		Description: fmt.Sprintf("recording %s/%s", rev.CameraName, rev.ID),
	}

	if err := upload.Run(ctx, log, upload.Upload(file), t.Descriptors, t.maxUploadAttempts(), t.RetrySleep); err != nil {
		results <- processOutcome{generation: generation, err: camerrors.New(ErrRecordingUploadFailed).
			Component(camerrors.ComponentRecording).
			Category(camerrors.CategoryUpload).
			Context("review_id", rev.ID).
			Context("cause", err.Error()).
			Build()}
		return
	}

	altPath := uploadDir + "/" + clipFileName(rev.CameraName, rev.StartTime, alternateSuffix(alternativeUpload))
	if err := upload.Run(ctx, log, upload.DeleteIfExists(altPath), t.Descriptors, t.maxDeleteAttempts(), t.RetrySleep); err != nil {
		results <- processOutcome{generation: generation, err: err}
		return
	}

	results <- processOutcome{generation: generation, err: nil}
}

// Run drives the task's event loop until the review reaches End and
// uploads, or the retry budget is exhausted. Each timer-driven rerun uses
// one of MaxRetryAttempts, whether the previous run failed or succeeded;
// a failure once the budget is used up, or a timer firing then, ends the
// task NotDone. ready, if non-nil, is closed
// once the first review has been received and its upload-process
// launched — bounding the race between task creation and first send
// (spec §4.G).
func (t *Task) Run(ctx context.Context, log logger.Logger, reviews <-chan review.Review, ready chan<- struct{}) Conclusion {
	log = log.Module("recording-task").With(logger.String("review_id", t.ID))

	var current review.Review
	var alternativeUpload bool
	var retryAttempt uint32
	var generation uint64
	var cancelInFlight context.CancelFunc
	results := make(chan processOutcome, 1)

	startProcess := func(rev review.Review) {
		if cancelInFlight != nil {
			cancelInFlight()
		}
		procCtx, cancel := context.WithCancel(ctx)
		cancelInFlight = cancel
		generation++
		gen := generation
		go t.runUploadProcess(procCtx, log, rev, alternativeUpload, gen, results)
	}
	defer func() {
		if cancelInFlight != nil {
			cancelInFlight()
		}
	}()

	select {
	case rev, ok := <-reviews:
		if !ok {
			return NotDone
		}
		current = rev
		startProcess(current)
	case <-ctx.Done():
		return NotDone
	}
	if ready != nil {
		close(ready)
	}

	timer := time.NewTimer(t.retryDuration())
	defer timer.Stop()

	for {
		select {
		case rev, ok := <-reviews:
			if !ok {
				return NotDone
			}
			current = rev
			startProcess(current)
			resetTimer(timer, t.retryDuration())

		case outcome := <-results:
			if outcome.generation != generation {
				continue
			}
			if outcome.err == nil {
				alternativeUpload = !alternativeUpload
				if current.HasEnded() {
					return Done
				}
				resetTimer(timer, t.retryDuration())
				continue
			}

			log.Warn("upload-process failed, will retry", logger.Err(outcome.err),
				logger.Int("retry_attempt", int(retryAttempt)))
			if retryAttempt >= t.maxRetryAttempts() {
				return NotDone
			}

		case <-timer.C:
			if retryAttempt >= t.maxRetryAttempts() {
				return NotDone
			}
			retryAttempt++
			startProcess(current)
			resetTimer(timer, t.retryDuration())

		case <-ctx.Done():
			return NotDone
		}
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
