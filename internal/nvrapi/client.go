// Package nvrapi wraps the NVR's HTTP API surface that camsync consumes:
// a health check, review detail lookup, an uptime probe, and recording
// clip retrieval (spec §6).
package nvrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	camerrors "github.com/nvrsync/camsync/internal/errors"
	"github.com/nvrsync/camsync/internal/httpclient"
)

// Client talks to a single NVR instance's HTTP API.
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// New constructs a Client against baseURL (e.g. "http://frigate.local:5000").
// cfg configures the underlying httpclient; nil selects its defaults.
func New(baseURL string, cfg *httpclient.Config) *Client {
	return &Client{http: httpclient.New(cfg), baseURL: baseURL}
}

func (c *Client) url(format string, args ...any) string {
	return c.baseURL + fmt.Sprintf(format, args...)
}

func (c *Client) err(cause error, op string) *camerrors.ErrorBuilder {
	return camerrors.New(cause).
		Component(camerrors.ComponentNVRAPI).
		Category(camerrors.CategoryNVRAPI).
		Context("operation", op)
}

// TestCall performs the health check GET /api/review/summary. The response
// must contain a "last24Hours" key; the call is informational — failure is
// logged by the caller, never fatal (spec §4.H).
func (c *Client) TestCall(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.url("/api/review/summary"))
	if err != nil {
		return c.err(err, "test_call").Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.err(fmt.Errorf("unexpected status %d", resp.StatusCode), "test_call").Build()
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return c.err(err, "test_call").Build()
	}
	if _, ok := body["last24Hours"]; !ok {
		return c.err(fmt.Errorf("response missing last24Hours key"), "test_call").Build()
	}
	return nil
}

// ReviewDetail is the JSON shape returned by GET /api/review/<id>.
type ReviewDetail struct {
	ID        string  `json:"id"`
	Camera    string  `json:"camera"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// ReviewByID fetches the review detail for id.
func (c *Client) ReviewByID(ctx context.Context, id string) (*ReviewDetail, error) {
	resp, err := c.http.Get(ctx, c.url("/api/review/%s", id))
	if err != nil {
		return nil, c.err(err, "review_by_id").Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.err(fmt.Errorf("unexpected status %d", resp.StatusCode), "review_by_id").
			Context("review_id", id).Build()
	}

	var detail ReviewDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, c.err(err, "review_by_id").Context("review_id", id).Build()
	}
	return &detail, nil
}

type statsResponse struct {
	Service struct {
		Uptime float64 `json:"uptime"`
	} `json:"service"`
}

// Uptime queries GET /api/stats and returns service.uptime in seconds.
func (c *Client) Uptime(ctx context.Context) (float64, error) {
	resp, err := c.http.Get(ctx, c.url("/api/stats"))
	if err != nil {
		return 0, c.err(err, "uptime").Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.err(fmt.Errorf("unexpected status %d", resp.StatusCode), "uptime").Build()
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, c.err(err, "uptime").Build()
	}
	return stats.Service.Uptime, nil
}

// ErrClipEmpty is returned by RecordingClip when the NVR has no clip for
// the requested camera/time window — a non-error, retriable Option::None
// in the spec's terms, but Go has no enum-of-error so a sentinel plays the
// same role.
var ErrClipEmpty = camerrors.NewStd("nvr returned no recording clip")

// RecordingClip fetches GET /api/<camera>/start/<start>/end/<end>/clip.mp4.
// A valid MP4 response has len > 11 and bytes[4:8] == "ftyp"; anything
// shorter or missing that marker is treated as ErrClipEmpty rather than a
// hard failure, since an NVR legitimately has no clip yet for an
// in-progress review.
func (c *Client) RecordingClip(ctx context.Context, camera string, startTS, endTS int64) ([]byte, error) {
	resp, err := c.http.Get(ctx, c.url("/api/%s/start/%d/end/%d/clip.mp4", camera, startTS, endTS))
	if err != nil {
		return nil, c.err(err, "recording_clip").Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.err(fmt.Errorf("unexpected status %d", resp.StatusCode), "recording_clip").
			Context("camera", camera).Build()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.err(err, "recording_clip").Context("camera", camera).Build()
	}

	if !isValidMP4(data) {
		return nil, ErrClipEmpty
	}
	return data, nil
}

func isValidMP4(data []byte) bool {
	return len(data) > 11 && string(data[4:8]) == "ftyp"
}

// Close releases the underlying HTTP client's idle connections.
func (c *Client) Close() { c.http.Close() }
