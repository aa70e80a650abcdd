// Package config loads go-focus configuration from YAML files and the
// environment using viper.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every automatically bound environment variable.
const EnvPrefix = "FOCUS"

type AppConfig struct {
	Server      ServerConfig
	Log         LogConfig
	Focus       FocusConfig
	Classifier  ClassifierConfig
	Persistence PersistenceConfig
	Auth        AuthConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port          int
	ReadTimeout   int // Seconds
	WriteTimeout  int // Seconds
	MaxFrameBytes int
	CORSOrigins   string
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

type FocusConfig struct {
	Window    int
	Threshold float64
}

type ClassifierConfig struct {
	ModelPath            string
	Confidence           float64
	EyesClosedConfidence float64
	MinEyeDistance       float64
	MaxEyeDistance       float64
	Timeout              time.Duration
}

type PersistenceConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	SessionKind string
	HTTP        HTTPSinkConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Sheets      SheetsConfig
}

type HTTPSinkConfig struct {
	Enabled    bool
	Endpoint   string
	MaxRetries int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
	Channel  string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type SheetsConfig struct {
	Enabled         bool
	CredentialsFile string
	SpreadsheetID   string
	Range           string
}

type AuthConfig struct {
	Enabled         bool
	JWTSecret       string
	TokenQueryParam string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

// Initialize loads the process-wide configuration for env once.
func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		instance, initErr = Load(env, "./configs", ".")
	})
	return initErr
}

// Get returns the configuration loaded by Initialize.
func Get() *AppConfig {
	return instance
}

// Load reads config.<env>.yaml from the given paths, layers environment
// variables and defaults on top and validates the result. A missing
// config file is not an error.
func Load(env string, paths ...string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
