package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything needed to boot the reflection guard service. The
// security policy keys are inlined so policy files use their keys verbatim.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Store         StoreConfig         `yaml:"store"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Security      SecurityConfig      `yaml:",inline"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig selects the backend for the statistics baseline and audit trail.
type StoreConfig struct {
	// Driver is one of memory, file, redis or sql.
	Driver string     `yaml:"driver"`
	File   FileStore  `yaml:"file"`
	Redis  RedisStore `yaml:"redis"`
	SQL    SQLStore   `yaml:"sql"`
	Retry  RetryCfg   `yaml:"retry"`
}

// FileStore keeps objects under a root directory using bucket-style keys.
type FileStore struct {
	Root          string `yaml:"root"`
	CompressAudit bool   `yaml:"compressAudit"`
}

// RedisStore configures the go-redis backed store.
type RedisStore struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	AuditTTL     time.Duration `yaml:"auditTTL"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// SQLStore configures the gorm backed store.
type SQLStore struct {
	// Dialect is sqlite or postgres.
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// RetryCfg bounds retries of transient store failures.
type RetryCfg struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// NotificationsConfig wires alert notifications to delivery sinks.
type NotificationsConfig struct {
	Log     bool          `yaml:"log"`
	Webhook WebhookConfig `yaml:"webhook"`
	NATS    NATSConfig    `yaml:"nats"`
}

// WebhookConfig posts notifications as JSON to an HTTP endpoint.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig publishes notifications to NATS subjects.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// Load initialises Config from a YAML (or JSON) file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("REFLECTION_GUARD_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Store: StoreConfig{
			Driver: "file",
			File:   FileStore{Root: "data"},
			Redis: RedisStore{
				Addr:         "localhost:6379",
				KeyPrefix:    "reflection-guard:",
				AuditTTL:     90 * 24 * time.Hour,
				DialTimeout:  2 * time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
			},
			SQL:   SQLStore{Dialect: "sqlite", DSN: "reflection-guard.db"},
			Retry: RetryCfg{Attempts: 3, Backoff: 50 * time.Millisecond},
		},
		Notifications: NotificationsConfig{
			Log:     true,
			Webhook: WebhookConfig{Timeout: 5 * time.Second},
			NATS:    NATSConfig{SubjectPrefix: "reflection-guard.alerts"},
		},
		Security: DefaultSecurity(),
	}
}
