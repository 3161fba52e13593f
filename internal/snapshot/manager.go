package snapshot

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nvrsync/camsync/internal/chanutil"
	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/review"
)

// taskCmd spawns snap as a snapshot task; if ack is non-nil it is closed
// once the spawned task finishes (success or failure — the manager only
// signals completion, not outcome).
type taskCmd struct {
	snap review.Snapshot
	ack  chan<- struct{}
}

type countCmd struct {
	reply chan<- int
}

// Manager is the long-lived snapshot task supervisor (spec §4.E). It
// consumes an unbounded command channel from a single goroutine (Run) and
// fans out each snapshot as its own goroutine, tracked so Stop can drain
// without cancelling outstanding work.
type Manager struct {
	Task Task

	taskQueue *chanutil.Unbounded[taskCmd]
	countChan chan countCmd
	stopChan  chan struct{}

	outstanding atomic.Int64
	wg          sync.WaitGroup
}

// NewManager constructs a Manager that uploads via task's configuration.
func NewManager(task Task) *Manager {
	return &Manager{
		Task:      task,
		taskQueue: chanutil.NewUnbounded[taskCmd](),
		countChan: make(chan countCmd),
		stopChan:  make(chan struct{}),
	}
}

// SubmitTask enqueues a snapshot upload. ack, if non-nil, is closed when
// the spawned task completes. Never blocks the caller (spec §4.E: "the
// channel is unbounded").
func (m *Manager) SubmitTask(snap review.Snapshot, ack chan<- struct{}) {
	m.taskQueue.Send(taskCmd{snap: snap, ack: ack})
}

// GetTaskCount returns the current count of outstanding (spawned, not yet
// finished) snapshot tasks.
func (m *Manager) GetTaskCount() int {
	reply := make(chan int, 1)
	m.countChan <- countCmd{reply: reply}
	return <-reply
}

// Stop signals the manager to stop accepting new work once drained. It
// does not cancel outstanding uploads.
func (m *Manager) Stop() {
	close(m.stopChan)
}

// Run is the manager's event loop; it returns once Stop has been called
// and every spawned task has finished. Intended to run on its own
// goroutine, started by the sync system.
//
// If ctx is cancelled while tasks remain outstanding, that is an
// unplanned drop (distinct from the cooperative Stop drain) and is
// reported as critical before Run returns.
func (m *Manager) Run(ctx context.Context, log logger.Logger) {
	log = log.Module("snapshot-manager")
	stopping := false

	for {
		if stopping && m.outstanding.Load() == 0 {
			m.wg.Wait()
			return
		}

		select {
		case cmd := <-m.taskQueue.Receive():
			if stopping {
				// Post-Stop submissions are rejected by the protocol; the
				// sync system stops routing to this manager before Stop.
				log.Warn("snapshot task submitted after stop, ignoring",
					logger.String("camera", cmd.snap.CameraName))
				continue
			}
			m.spawn(ctx, log, cmd)

		case cmd := <-m.countChan:
			cmd.reply <- int(m.outstanding.Load())

		case <-m.stopChan:
			stopping = true

		case <-ctx.Done():
			if remaining := m.outstanding.Load(); remaining > 0 {
				log.Critical("snapshot manager dropped with tasks remaining",
					logger.Int("outstanding", int(remaining)))
				camerrors.TaskLostCritical(camerrors.ComponentSnapshot, "manager-drop-with-tasks-remaining")
			}
			return
		}
	}
}

func (m *Manager) spawn(ctx context.Context, log logger.Logger, cmd taskCmd) {
	m.outstanding.Add(1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.outstanding.Add(-1)
		defer func() {
			if cmd.ack != nil {
				close(cmd.ack)
			}
		}()

		if err := m.Task.Run(ctx, log, cmd.snap); err != nil {
			log.Warn("snapshot upload did not complete",
				logger.String("camera", cmd.snap.CameraName),
				logger.String("object", cmd.snap.ObjectName),
				logger.Err(err))
		}
	}()
}
