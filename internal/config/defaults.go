package config

import "github.com/spf13/viper"

// setDefaultConfig sets default values for every configuration parameter so
// a Settings struct is always usable even with an empty config file.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "camsync")
	v.SetDefault("mqtt.topic_prefix", "frigate")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_retry", true)

	v.SetDefault("nvr.api_address", "http://localhost:5000")
	v.SetDefault("nvr.api_proxy", "")
	v.SetDefault("nvr.delay_after_startup", "0s")

	v.SetDefault("upload_destinations", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")

	v.SetDefault("upload.max_attempts", 3)
	v.SetDefault("upload.retry_sleep", "5s")

	v.SetDefault("recording.max_retry_attempts", 60)
	v.SetDefault("recording.retry_duration", "60s")
	v.SetDefault("recording.max_upload_attempts", 3)
	v.SetDefault("recording.max_delete_attempts", 5)

	v.SetDefault("snapshot.max_attempts", 128)

	v.SetDefault("telemetry.sentry_enabled", false)
	v.SetDefault("telemetry.sentry_dsn", "")
}
