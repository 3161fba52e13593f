// validate.go
package config

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a Settings struct so a
// user sees all of them at once instead of one at a time.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct. The descriptor
// grammar itself is validated lazily by internal/descriptor when each
// destination is instantiated; this pass only checks presence and the
// invariants the spec assigns to the core (§6: upload_destinations must be
// a non-empty sequence).
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}

	if len(s.UploadDestinations) == 0 {
		ve.Errors = append(ve.Errors, "upload_destinations must be a non-empty sequence of descriptor strings")
	}

	if s.MQTT.Broker == "" {
		ve.Errors = append(ve.Errors, "mqtt.broker must not be empty")
	}
	if s.MQTT.TopicPrefix == "" {
		ve.Errors = append(ve.Errors, "mqtt.topic_prefix must not be empty")
	}

	if s.NVR.APIAddress == "" {
		ve.Errors = append(ve.Errors, "nvr.api_address must not be empty")
	}
	if s.NVR.DelayAfterStartup < 0 {
		ve.Errors = append(ve.Errors, "nvr.delay_after_startup must not be negative")
	}

	if s.Upload.MaxAttempts < 1 {
		ve.Errors = append(ve.Errors, "upload.max_attempts must be at least 1")
	}
	if s.Recording.MaxRetryAttempts < 1 {
		ve.Errors = append(ve.Errors, "recording.max_retry_attempts must be at least 1")
	}
	if s.Recording.MaxUploadAttempts < 1 {
		ve.Errors = append(ve.Errors, "recording.max_upload_attempts must be at least 1")
	}
	if s.Recording.MaxDeleteAttempts < 1 {
		ve.Errors = append(ve.Errors, "recording.max_delete_attempts must be at least 1")
	}
	if s.Snapshot.MaxAttempts < 1 {
		ve.Errors = append(ve.Errors, "snapshot.max_attempts must be at least 1")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
