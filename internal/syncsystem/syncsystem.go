// Package syncsystem wires the broker decoder, the NVR API, and the
// snapshot/recording managers into the top-level event loop (spec §4.H).
package syncsystem

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvrsync/camsync/internal/broker"
	"github.com/nvrsync/camsync/internal/descriptor"
	"github.com/nvrsync/camsync/internal/destination"
	"github.com/nvrsync/camsync/internal/logger"
	"github.com/nvrsync/camsync/internal/recording"
	"github.com/nvrsync/camsync/internal/snapshot"
)

// NVRHandle is the subset of nvrapi.Client the sync system and recording
// tasks need: an uptime probe, a health check, and clip retrieval.
type NVRHandle interface {
	TestCall(ctx context.Context) error
	Uptime(ctx context.Context) (float64, error)
	recording.ClipFetcher
}

// EventSource is what the broker decoder provides: a channel of decoded
// events. A narrow interface rather than *broker.Decoder so tests can feed
// the event loop without a live MQTT connection.
type EventSource interface {
	Events() <-chan broker.Event
}

// cameraState tracks the two enable flags per camera (spec §4.H, §4): both
// default to false for a camera never mentioned on the state topics.
type cameraState struct {
	recordingsEnabled bool
	snapshotsEnabled  bool
}

// Config bundles what System needs beyond the broker/api/destinations
// themselves: the startup uptime gate.
type Config struct {
	DelayAfterStartup time.Duration
}

// System is the sync system (component H): the single owner of per-camera
// enable state, routing broker events to the snapshot and recording
// managers subject to the uptime gate.
type System struct {
	cfg         Config
	decoder     EventSource
	api         NVRHandle
	descriptors []descriptor.Descriptor

	snapshotManager  *snapshot.Manager
	recordingManager *recording.Manager

	mu     sync.Mutex
	states map[string]*cameraState

	startedAt   time.Time
	uptimeGatePassed bool
}

// New constructs a System. snapshotTask and newRecordingTask configure the
// two managers this system supervises; descriptors are used only for the
// startup per-destination Init probe.
func New(cfg Config, decoder EventSource, api NVRHandle, descriptors []descriptor.Descriptor, snapshotTask snapshot.Task, newRecordingTask recording.TaskFactory) *System {
	return &System{
		cfg:              cfg,
		decoder:          decoder,
		api:              api,
		descriptors:      descriptors,
		snapshotManager:  snapshot.NewManager(snapshotTask),
		recordingManager: recording.NewManager(newRecordingTask),
		states:           make(map[string]*cameraState),
	}
}

func (s *System) state(camera string) *cameraState {
	st, ok := s.states[camera]
	if !ok {
		st = &cameraState{}
		s.states[camera] = st
	}
	return st
}

// Run performs startup (non-fatal health check and per-destination init),
// then runs the event loop until ctx is cancelled, draining the snapshot
// and recording managers before returning.
func (s *System) Run(ctx context.Context, log logger.Logger) {
	log = log.Module("sync-system")
	s.startedAt = time.Now()

	s.startup(ctx, log)

	// The managers and their tasks outlive ctx so that Stop can drain them.
	mgrCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error { s.snapshotManager.Run(mgrCtx, log); return nil })
	g.Go(func() error { s.recordingManager.Run(mgrCtx, log); return nil })

	s.loop(ctx, log)

	s.snapshotManager.Stop()
	s.recordingManager.Stop()
	_ = g.Wait()
}

func (s *System) startup(ctx context.Context, log logger.Logger) {
	if err := s.api.TestCall(ctx); err != nil {
		log.Warn("nvr health check failed at startup, continuing anyway", logger.Err(err))
	}

	for _, d := range s.descriptors {
		dest, err := destination.New(d)
		if err != nil {
			log.Warn("destination construction failed at startup", logger.String("destination", d.Display()), logger.Err(err))
			continue
		}
		if err := dest.Init(ctx); err != nil {
			log.Warn("destination init failed at startup, continuing anyway",
				logger.String("destination", d.Display()), logger.Err(err))
		}
		_ = dest.Close()
	}
}

func (s *System) loop(ctx context.Context, log logger.Logger) {
	events := s.decoder.Events()
	for {
		select {
		case evt := <-events:
			s.handleEvent(ctx, log, evt)
		case <-ctx.Done():
			return
		}
	}
}

func (s *System) handleEvent(ctx context.Context, log logger.Logger, evt broker.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case evt.RecordingsState != nil:
		s.state(evt.RecordingsState.Camera).recordingsEnabled = evt.RecordingsState.Enabled
		log.Debug("recordings state updated",
			logger.String("camera", evt.RecordingsState.Camera),
			logger.Bool("enabled", evt.RecordingsState.Enabled))

	case evt.SnapshotsState != nil:
		s.state(evt.SnapshotsState.Camera).snapshotsEnabled = evt.SnapshotsState.Enabled
		log.Debug("snapshots state updated",
			logger.String("camera", evt.SnapshotsState.Camera),
			logger.Bool("enabled", evt.SnapshotsState.Enabled))

	case evt.Snapshot != nil:
		snap := *evt.Snapshot
		if !s.state(snap.CameraName).snapshotsEnabled {
			log.Debug("snapshot dropped, snapshots disabled", logger.String("camera", snap.CameraName))
			return
		}
		if !s.uptimeGateOpen(ctx, log) {
			log.Debug("snapshot dropped, uptime gate not yet passed", logger.String("camera", snap.CameraName))
			return
		}
		s.snapshotManager.SubmitTask(snap, nil)

	case evt.Review != nil:
		rev := *evt.Review
		if !s.state(rev.CameraName).recordingsEnabled {
			log.Debug("review dropped, recordings disabled", logger.String("camera", rev.CameraName))
			return
		}
		if !s.uptimeGateOpen(ctx, log) {
			log.Debug("review dropped, uptime gate not yet passed", logger.String("camera", rev.CameraName))
			return
		}
		s.recordingManager.SubmitReview(rev, nil)
	}
}

// uptimeGateOpen reports whether the NVR's reported uptime has reached
// DelayAfterStartup. Once open it latches open (spec test 6: the gate never
// re-closes once the NVR has been up long enough, even if a later probe
// fails transiently).
func (s *System) uptimeGateOpen(ctx context.Context, log logger.Logger) bool {
	if s.uptimeGatePassed {
		return true
	}
	if s.cfg.DelayAfterStartup <= 0 {
		s.uptimeGatePassed = true
		return true
	}
	uptime, err := s.api.Uptime(ctx)
	if err != nil {
		log.Warn("uptime probe failed, treating gate as still closed", logger.Err(err))
		return false
	}
	if uptime >= s.cfg.DelayAfterStartup.Seconds() {
		s.uptimeGatePassed = true
		return true
	}
	return false
}
