package recording

import (
	"context"
	"sync"

	"github.com/nvrsync/camsync/internal/chanutil"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
)

// taskCmd routes a review update to its owning F task, launching one if
// none exists yet for review.ID. ack, if non-nil, is signalled once the
// review has been handed to the task's channel.
type taskCmd struct {
	review review.Review
	ack    chan<- struct{}
}

type countCmd struct {
	reply chan<- int
}

// TaskFactory builds a fresh Task for a newly-seen review id.
type TaskFactory func(reviewID string) *Task

// Manager is the recordings manager (spec §4.G): it owns the set of
// unfinished F tasks, routes review updates to the right one by id, and
// guarantees at most one task per id.
type Manager struct {
	NewTask TaskFactory

	cmdQueue  *chanutil.Unbounded[taskCmd]
	countChan chan countCmd
	stopChan  chan struct{}

	mu      sync.Mutex
	senders map[string]chan review.Review
	wg      sync.WaitGroup
}

// NewManager constructs a Manager that builds tasks via newTask.
func NewManager(newTask TaskFactory) *Manager {
	return &Manager{
		NewTask:   newTask,
		cmdQueue:  chanutil.NewUnbounded[taskCmd](),
		countChan: make(chan countCmd),
		stopChan:  make(chan struct{}),
		senders:   make(map[string]chan review.Review),
	}
}

// SubmitReview routes rev to its task, launching one if this is the first
// update for rev.ID. ack, if non-nil, is closed once the review has been
// delivered to the per-task channel. Never blocks the caller.
func (m *Manager) SubmitReview(rev review.Review, ack chan<- struct{}) {
	m.cmdQueue.Send(taskCmd{review: rev, ack: ack})
}

// GetTaskCount returns the number of currently tracked review tasks.
func (m *Manager) GetTaskCount() int {
	reply := make(chan int, 1)
	m.countChan <- countCmd{reply: reply}
	return <-reply
}

// Stop signals the manager to stop accepting new review ids once drained.
// Already-running tasks finish normally; Stop does not cancel them.
func (m *Manager) Stop() {
	close(m.stopChan)
}

// Run is the manager's event loop. ctx and log are threaded through to
// every task this manager launches.
func (m *Manager) Run(ctx context.Context, log logger.Logger) {
	log = log.Module("recording-manager")
	stopping := false
	completions := make(chan string)

	for {
		m.mu.Lock()
		empty := len(m.senders) == 0
		m.mu.Unlock()
		if stopping && empty {
			m.wg.Wait()
			return
		}

		select {
		case cmd := <-m.cmdQueue.Receive():
			if stopping {
				log.Warn("review submitted after stop, ignoring", logger.String("review_id", cmd.review.ID))
				continue
			}
			m.route(ctx, log, cmd, completions)

		case id := <-completions:
			m.mu.Lock()
			_, existed := m.senders[id]
			delete(m.senders, id)
			m.mu.Unlock()
			if !existed {
				log.Critical("recording task completion for unknown id", logger.String("review_id", id))
				camerrors.TaskLostCritical(camerrors.ComponentRecording, id)
			}

		case cmd := <-m.countChan:
			m.mu.Lock()
			cmd.reply <- len(m.senders)
			m.mu.Unlock()

		case <-m.stopChan:
			stopping = true

		case <-ctx.Done():
			m.mu.Lock()
			remaining := len(m.senders)
			m.mu.Unlock()
			if remaining > 0 {
				log.Critical("recording manager dropped with tasks remaining", logger.Int("outstanding", remaining))
				camerrors.TaskLostCritical(camerrors.ComponentRecording, "manager-drop-with-tasks-remaining")
			}
			return
		}
	}
}

func (m *Manager) route(ctx context.Context, log logger.Logger, cmd taskCmd, completions chan<- string) {
	m.mu.Lock()
	sender, exists := m.senders[cmd.review.ID]
	m.mu.Unlock()

	if !exists {
		task := m.NewTask(cmd.review.ID)
		ch := make(chan review.Review, 1) // first send below never blocks on an unstarted task
		ready := make(chan struct{})

		m.mu.Lock()
		m.senders[cmd.review.ID] = ch
		m.mu.Unlock()

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			conclusion := task.Run(ctx, log, ch, ready)
			log.Info("recording task finished",
				logger.String("review_id", cmd.review.ID),
				logger.String("conclusion", string(conclusion)))
			select {
			case completions <- cmd.review.ID:
			case <-ctx.Done():
			}
		}()

		ch <- cmd.review
		<-ready
		if cmd.ack != nil {
			close(cmd.ack)
		}
		return
	}

	sender <- cmd.review
	if cmd.ack != nil {
		close(cmd.ack)
	}
}
