package broker

import (
	"encoding/json"
	"fmt"
	"strings"

	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/review"
)

// Event is whatever the decoder emits onto the sync system's channel for one
// recognized topic (spec §6's broker grammar). Exactly one field is set.
type Event struct {
	RecordingsState *CameraState
	SnapshotsState  *CameraState
	Snapshot        *review.Snapshot
	Review          *review.Review
}

// CameraState is a decoded "<prefix>/<camera>/{recordings,snapshots}/state"
// message.
type CameraState struct {
	Camera  string
	Enabled bool
}

// reviewPayload mirrors the wire shape of the reviews topic: {type,
// before:{...}, after:{...}}. Only after is consulted; before carries the
// prior version of the same review and is not needed by this decoder.
type reviewPayload struct {
	Type   string        `json:"type"`
	Before *reviewFields `json:"before"`
	After  *reviewFields `json:"after"`
}

type reviewFields struct {
	ID        string   `json:"id"`
	Camera    string   `json:"camera"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// decodeTopic maps one MQTT (topic, payload) pair to an Event. ok is false
// for topics outside the grammar spec §6 consumes; those are ignored by the
// caller, not an error.
func decodeTopic(prefix, topic string, payload []byte) (Event, bool, error) {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if rest == topic {
		return Event{}, false, nil
	}
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 3 && parts[1] == "recordings" && parts[2] == "state":
		enabled, err := decodeOnOff(payload)
		if err != nil {
			return Event{}, false, err
		}
		return Event{RecordingsState: &CameraState{Camera: parts[0], Enabled: enabled}}, true, nil

	case len(parts) == 3 && parts[1] == "snapshots" && parts[2] == "state":
		enabled, err := decodeOnOff(payload)
		if err != nil {
			return Event{}, false, err
		}
		return Event{SnapshotsState: &CameraState{Camera: parts[0], Enabled: enabled}}, true, nil

	case len(parts) == 3 && parts[2] == "snapshot":
		camera, object := parts[0], parts[1]
		snap := &review.Snapshot{CameraName: camera, ObjectName: object, JPEGBytes: payload}
		return Event{Snapshot: snap}, true, nil

	case rest == "reviews":
		rev, err := decodeReview(payload)
		if err != nil {
			return Event{}, false, err
		}
		return Event{Review: rev}, true, nil

	default:
		return Event{}, false, nil
	}
}

func decodeOnOff(payload []byte) (bool, error) {
	switch strings.TrimSpace(string(payload)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, camerrors.New(fmt.Errorf("unrecognized state payload %q", payload)).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTDecode).
			Build()
	}
}

func decodeReview(payload []byte) (*review.Review, error) {
	var p reviewPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, camerrors.New(err).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTDecode).
			Context("stage", "json-unmarshal").
			Build()
	}
	if p.After == nil {
		return nil, camerrors.New(fmt.Errorf("review payload missing \"after\"")).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTDecode).
			Build()
	}

	var typ review.Type
	switch p.Type {
	case "new":
		typ = review.TypeNew
	case "update":
		typ = review.TypeUpdate
	case "end":
		typ = review.TypeEnd
	default:
		return nil, camerrors.New(fmt.Errorf("unrecognized review type %q", p.Type)).
			Component(camerrors.ComponentBroker).
			Category(camerrors.CategoryMQTTDecode).
			Build()
	}

	return &review.Review{
		CameraName: p.After.Camera,
		ID:         p.After.ID,
		StartTime:  p.After.StartTime,
		EndTime:    p.After.EndTime,
		Type:       typ,
	}, nil
}
