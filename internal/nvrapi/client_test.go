package nvrapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	camerrors "github.com/nvrsync/camsync/internal/errors"
)

func TestTestCallSucceedsWhenLast24HoursPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/review/summary", r.URL.Path)
		w.Write([]byte(`{"last24Hours": 3}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	require.NoError(t, c.TestCall(t.Context()))
}

func TestTestCallFailsWhenKeyMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	assert.Error(t, c.TestCall(t.Context()))
}

func TestReviewByIDDecodesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/review/r42", r.URL.Path)
		w.Write([]byte(`{"id":"r42","camera":"camY","start_time":100,"end_time":130}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	detail, err := c.ReviewByID(t.Context(), "r42")
	require.NoError(t, err)
	assert.Equal(t, "camY", detail.Camera)
	assert.Equal(t, 130.0, detail.EndTime)
}

func TestUptimeParsesServiceUptime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"service":{"uptime":61.5}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	uptime, err := c.Uptime(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 61.5, uptime, 0.001)
}

func TestRecordingClipAcceptsValidMP4(t *testing.T) {
	body := append([]byte{0, 0, 0, 0, 'f', 't', 'y', 'p'}, []byte("restofclip")...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/camY/start/100/end/130/clip.mp4", r.URL.Path)
		w.Write(body)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	clip, err := c.RecordingClip(t.Context(), "camY", 100, 130)
	require.NoError(t, err)
	assert.Equal(t, body, clip)
}

func TestRecordingClipRejectsShortOrNonMP4Body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.RecordingClip(t.Context(), "camY", 100, 130)
	assert.ErrorIs(t, err, ErrClipEmpty)
}

func TestClientErrorsCarryNVRAPICategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.TestCall(t.Context())
	require.Error(t, err)
	assert.True(t, camerrors.IsCategory(err, camerrors.CategoryNVRAPI))
}
