package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
upload_destinations:
  - "local:path=/tmp/uploads"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", settings.MQTT.Broker)
	assert.Equal(t, "frigate", settings.MQTT.TopicPrefix)
	assert.Equal(t, 3, settings.Upload.MaxAttempts)
	assert.Equal(t, 5*time.Second, settings.Upload.RetrySleep)
	assert.Equal(t, 60, settings.Recording.MaxRetryAttempts)
	assert.Equal(t, []string{"local:path=/tmp/uploads"}, settings.UploadDestinations)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
upload_destinations:
  - "local:path=/tmp/uploads"
`)

	t.Setenv("CAMSYNC_MQTT_BROKER", "tcp://nvr.local:1883")
	t.Setenv("CAMSYNC_NVR_DELAY_AFTER_STARTUP", "30s")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://nvr.local:1883", settings.MQTT.Broker)
	assert.Equal(t, 30*time.Second, settings.NVR.DelayAfterStartup)
}

func TestLoadMissingConfigFileExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestValidateSettingsRejectsEmptyDestinations(t *testing.T) {
	s := &Settings{
		MQTT: MQTT{Broker: "tcp://x:1883", TopicPrefix: "frigate"},
		NVR:  NVR{APIAddress: "http://x"},
	}
	s.Upload.MaxAttempts = 1
	s.Recording.MaxRetryAttempts = 1
	s.Recording.MaxUploadAttempts = 1
	s.Recording.MaxDeleteAttempts = 1
	s.Snapshot.MaxAttempts = 1

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_destinations")
}

func TestValidateSettingsAccumulatesAllErrors(t *testing.T) {
	s := &Settings{}
	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Errors), 5)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mqtt:")
}
