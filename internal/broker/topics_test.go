package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "frigate"

func TestDecodeTopicRecordingsState(t *testing.T) {
	evt, ok, err := decodeTopic(prefix, "frigate/camX/recordings/state", []byte(" ON \n"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, evt.RecordingsState)
	assert.Equal(t, "camX", evt.RecordingsState.Camera)
	assert.True(t, evt.RecordingsState.Enabled)
}

func TestDecodeTopicSnapshotsStateOff(t *testing.T) {
	evt, ok, err := decodeTopic(prefix, "frigate/camX/snapshots/state", []byte("OFF"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, evt.SnapshotsState)
	assert.False(t, evt.SnapshotsState.Enabled)
}

func TestDecodeTopicStateRejectsUnrecognizedPayload(t *testing.T) {
	_, _, err := decodeTopic(prefix, "frigate/camX/recordings/state", []byte("on"))
	assert.Error(t, err, "payload matching must be case-sensitive per spec")
}

func TestDecodeTopicSnapshotCarriesRawBytes(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02}
	evt, ok, err := decodeTopic(prefix, "frigate/camX/person/snapshot", payload)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, evt.Snapshot)
	assert.Equal(t, "camX", evt.Snapshot.CameraName)
	assert.Equal(t, "person", evt.Snapshot.ObjectName)
	assert.Equal(t, payload, evt.Snapshot.JPEGBytes)
}

func TestDecodeTopicReviewsParsesAfterFields(t *testing.T) {
	body := []byte(`{"type":"new","before":null,"after":{"id":"r1","camera":"camX","start_time":100.5,"end_time":null}}`)
	evt, ok, err := decodeTopic(prefix, "frigate/reviews", body)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, evt.Review)
	assert.Equal(t, "r1", evt.Review.ID)
	assert.Equal(t, "camX", evt.Review.CameraName)
	assert.InDelta(t, 100.5, evt.Review.StartTime, 0.0001)
	assert.Nil(t, evt.Review.EndTime)
}

func TestDecodeTopicReviewsEndCarriesEndTime(t *testing.T) {
	body := []byte(`{"type":"end","after":{"id":"r1","camera":"camX","start_time":100,"end_time":130.0}}`)
	evt, ok, err := decodeTopic(prefix, "frigate/reviews", body)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, evt.Review.HasEnded())
	require.NotNil(t, evt.Review.EndTime)
	assert.InDelta(t, 130.0, *evt.Review.EndTime, 0.0001)
}

func TestDecodeTopicReviewsMissingAfterIsError(t *testing.T) {
	_, _, err := decodeTopic(prefix, "frigate/reviews", []byte(`{"type":"new"}`))
	assert.Error(t, err)
}

func TestDecodeTopicReviewsUnknownTypeIsError(t *testing.T) {
	body := []byte(`{"type":"weird","after":{"id":"r1","camera":"camX","start_time":1}}`)
	_, _, err := decodeTopic(prefix, "frigate/reviews", body)
	assert.Error(t, err)
}

func TestDecodeTopicIgnoresTopicsOutsideGrammar(t *testing.T) {
	_, ok, err := decodeTopic(prefix, "frigate/camX/motion", []byte("irrelevant"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeTopicIgnoresTopicsUnderAnotherPrefix(t *testing.T) {
	_, ok, err := decodeTopic(prefix, "other/camX/reviews", []byte("{}"))
	require.NoError(t, err)
	assert.False(t, ok)
}
