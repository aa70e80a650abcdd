package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Validate checks the loaded configuration for unusable values.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}
	if c.Server.MaxFrameBytes < 1 {
		return errors.New("server.maxFrameBytes must be positive")
	}

	if c.Focus.Window < 1 {
		return errors.New("focus.window must be at least 1")
	}
	if c.Focus.Threshold < 0 || c.Focus.Threshold >= 1 {
		return fmt.Errorf("focus.threshold must be in [0, 1), got %.2f", c.Focus.Threshold)
	}

	if c.Classifier.MinEyeDistance >= c.Classifier.MaxEyeDistance {
		return errors.New("classifier.minEyeDistance must be below classifier.maxEyeDistance")
	}
	if c.Classifier.Timeout <= 0 {
		return errors.New("classifier.timeout must be positive")
	}

	p := c.Persistence
	if p.Interval <= 0 {
		return errors.New("persistence.interval must be positive")
	}
	if p.Timeout <= 0 {
		return errors.New("persistence.timeout must be positive")
	}
	if p.HTTP.Enabled && p.HTTP.Endpoint == "" {
		return errors.New("persistence.http.endpoint must be set when the http sink is enabled")
	}
	if p.SQLite.Enabled && p.SQLite.Path == "" {
		return errors.New("persistence.sqlite.path must be set when the sqlite store is enabled")
	}
	if p.Redis.Enabled && p.Redis.Address == "" {
		return errors.New("persistence.redis.address must be set when the redis sink is enabled")
	}
	if p.Kafka.Enabled {
		if len(p.Kafka.Brokers) == 0 {
			return errors.New("persistence.kafka.brokers must be set when the kafka sink is enabled")
		}
		if p.Kafka.Topic == "" {
			return errors.New("persistence.kafka.topic must be set when the kafka sink is enabled")
		}
	}
	if p.Sheets.Enabled && (p.Sheets.CredentialsFile == "" || p.Sheets.SpreadsheetID == "") {
		return errors.New("persistence.sheets needs credentialsFile and spreadsheetID when enabled")
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "default-secret" {
			return errors.New("auth.jwtSecret must be set to a strong secret when auth is enabled")
		}
		if c.Auth.TokenQueryParam == "" {
			return errors.New("auth.tokenQueryParam must be configured when auth is enabled")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "FOCUS_PORT", "PORT")

	// Log
	v.BindEnv("log.level", "FOCUS_LOG_LEVEL")
	v.BindEnv("log.format", "FOCUS_LOG_FORMAT")

	// Focus smoothing and classifier
	v.BindEnv("focus.window", "FOCUS_WINDOW")
	v.BindEnv("focus.threshold", "FOCUS_THRESHOLD")
	v.BindEnv("classifier.modelPath", "FOCUS_MODEL_PATH")

	// Persistence
	v.BindEnv("persistence.interval", "FOCUS_FLUSH_INTERVAL")
	v.BindEnv("persistence.timeout", "FOCUS_FLUSH_TIMEOUT")
	v.BindEnv("persistence.http.enabled", "FOCUS_HTTP_SINK_ENABLED")
	v.BindEnv("persistence.http.endpoint", "FOCUS_HTTP_SINK_ENDPOINT", "PHP_ENDPOINT")
	v.BindEnv("persistence.sqlite.path", "FOCUS_SQLITE_PATH")
	v.BindEnv("persistence.redis.enabled", "FOCUS_REDIS_ENABLED")
	v.BindEnv("persistence.redis.address", "FOCUS_REDIS_ADDRESS")
	v.BindEnv("persistence.redis.password", "FOCUS_REDIS_PASSWORD")
	v.BindEnv("persistence.kafka.enabled", "FOCUS_KAFKA_ENABLED")
	v.BindEnv("persistence.kafka.brokers", "FOCUS_KAFKA_BROKERS")
	v.BindEnv("persistence.sheets.enabled", "FOCUS_SHEETS_ENABLED")
	v.BindEnv("persistence.sheets.credentialsFile", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("persistence.sheets.spreadsheetID", "FOCUS_SHEETS_SPREADSHEET_ID")

	// Auth
	v.BindEnv("auth.enabled", "FOCUS_AUTH_ENABLED")
	v.BindEnv("auth.jwtSecret", "FOCUS_AUTH_JWT_SECRET")
}
