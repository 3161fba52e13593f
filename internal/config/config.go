// Package config loads camsync's YAML configuration into a Settings struct
// using Viper, with environment variable overrides and embedded defaults.
package config

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"embed"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// MQTT holds the broker connection settings (spec §6 mqtt_* keys).
type MQTT struct {
	Broker       string // tcp://host:port or ssl://host:port
	ClientID     string `mapstructure:"client_id"`
	Username     string
	Password     string
	TopicPrefix  string `mapstructure:"topic_prefix"` // <prefix> in <prefix>/<camera>/recordings/state etc.
	QoS          byte
	ConnectRetry bool `mapstructure:"connect_retry"`
}

// NVR holds the Frigate-compatible HTTP API settings.
type NVR struct {
	APIAddress        string        `mapstructure:"api_address"`
	APIProxy          string        `mapstructure:"api_proxy"`
	DelayAfterStartup time.Duration `mapstructure:"delay_after_startup"`
}

// Settings is the root camsync configuration.
type Settings struct {
	Debug bool

	MQTT MQTT `mapstructure:"mqtt"`
	NVR  NVR  `mapstructure:"nvr"`

	// UploadDestinations is a non-empty sequence of descriptor strings
	// (see internal/descriptor), processed in order for every upload.
	UploadDestinations []string `mapstructure:"upload_destinations"`

	Logging struct {
		Level string
		Path  string // empty means stderr
	}

	Upload struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		RetrySleep  time.Duration `mapstructure:"retry_sleep"`
	}

	Recording struct {
		MaxRetryAttempts  int           `mapstructure:"max_retry_attempts"`
		RetryDuration     time.Duration `mapstructure:"retry_duration"`
		MaxUploadAttempts int           `mapstructure:"max_upload_attempts"`
		MaxDeleteAttempts int           `mapstructure:"max_delete_attempts"`
	}

	Snapshot struct {
		MaxAttempts int `mapstructure:"max_attempts"`
	}

	Telemetry struct {
		SentryEnabled bool   `mapstructure:"sentry_enabled"`
		SentryDSN     string `mapstructure:"sentry_dsn"`
	}
}

var (
	settingsMu       sync.RWMutex
	settingsInstance *Settings
)

// Load reads the configuration file (explicit path, or the default search
// path if empty) and environment variables into a Settings struct.
func Load(configPath string) (*Settings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		log.Printf("camsync: %v", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		for _, p := range defaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !isConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("config file %q not found", configPath)
		}
		log.Printf("camsync: no config file found, using embedded defaults")
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func isConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	ce, ok := err.(viper.ConfigFileNotFoundError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

// GetSettings returns the most recently loaded Settings, or nil if Load has
// not been called yet.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsInstance
}

func embeddedDefaultYAML() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("camsync: embedded default config missing: %v", err)
	}
	return string(data)
}

// WriteDefaultConfig writes the embedded default config.yaml to path,
// creating parent directories as needed.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, []byte(embeddedDefaultYAML()), 0o644)
}
