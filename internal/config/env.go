// env.go - environment variable configuration for camsync
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for a single environment variable override.
type envBinding struct {
	ConfigKey string
	EnvVar    string
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"mqtt.broker", "CAMSYNC_MQTT_BROKER"},
		{"mqtt.client_id", "CAMSYNC_MQTT_CLIENT_ID"},
		{"mqtt.username", "CAMSYNC_MQTT_USERNAME"},
		{"mqtt.password", "CAMSYNC_MQTT_PASSWORD"},
		{"mqtt.topic_prefix", "CAMSYNC_MQTT_TOPIC_PREFIX"},
		{"nvr.api_address", "CAMSYNC_NVR_API_ADDRESS"},
		{"nvr.api_proxy", "CAMSYNC_NVR_API_PROXY"},
		{"nvr.delay_after_startup", "CAMSYNC_NVR_DELAY_AFTER_STARTUP"},
		{"logging.level", "CAMSYNC_LOG_LEVEL"},
		{"logging.path", "CAMSYNC_LOG_PATH"},
		{"telemetry.sentry_dsn", "CAMSYNC_SENTRY_DSN"},
	}
}

// bindEnvVars binds the known overrides and also enables automatic
// CAMSYNC_-prefixed matching for any other key, so nested keys like
// upload.max_attempts are reachable as CAMSYNC_UPLOAD_MAX_ATTEMPTS without
// an explicit binding.
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix("camsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var failures []string
	for _, b := range getEnvBindings() {
		if err := v.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", b.EnvVar, err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("environment variable binding issues:\n  - %s", strings.Join(failures, "\n  - "))
	}
	return nil
}
