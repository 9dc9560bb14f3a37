package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	abtest "github.com/tracklab/abtest-go"
)

// Snapshot source kinds.
const (
	SourceAPI   = "api"
	SourceFile  = "file"
	SourceMinIO = "minio"
)

// Config is the server configuration file. Values may reference environment
// variables as $VAR or ${VAR}.
type Config struct {
	Listen string `yaml:"listen"`
	APIKey string `yaml:"apiKey"`
	// BaseURL is the API base URL, used for the api snapshot source and
	// for impressions.
	BaseURL string `yaml:"baseURL"`

	Snapshot    SnapshotConfig    `yaml:"snapshot"`
	Impressions ImpressionsConfig `yaml:"impressions"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Log         LogConfig         `yaml:"log"`
}

type SnapshotConfig struct {
	Source          string             `yaml:"source"`
	File            string             `yaml:"file"`
	MinIO           abtest.MinIOConfig `yaml:"minio"`
	RefreshInterval time.Duration      `yaml:"refreshInterval"`
}

type ImpressionsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

type TracingConfig struct {
	// Endpoint of an OTLP gRPC collector. Tracing is off when empty.
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"serviceName"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads path, expands environment variables and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = abtest.DefaultBaseURL
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Snapshot.Source == "" {
		c.Snapshot.Source = SourceAPI
	}
	if c.Snapshot.RefreshInterval == 0 {
		c.Snapshot.RefreshInterval = abtest.DefaultSnapshotRefreshInterval
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "abtest-server"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.Snapshot.Source {
	case SourceAPI:
		if c.APIKey == "" {
			return fmt.Errorf("apiKey is required for the %s snapshot source", SourceAPI)
		}
	case SourceFile:
		if c.Snapshot.File == "" {
			return fmt.Errorf("snapshot.file is required for the %s snapshot source", SourceFile)
		}
	case SourceMinIO:
		if c.Snapshot.MinIO.Endpoint == "" || c.Snapshot.MinIO.Bucket == "" {
			return fmt.Errorf("snapshot.minio.endpoint and snapshot.minio.bucket are required for the %s snapshot source", SourceMinIO)
		}
	default:
		return fmt.Errorf("unknown snapshot source %q", c.Snapshot.Source)
	}
	if c.Snapshot.RefreshInterval < 0 {
		return fmt.Errorf("snapshot.refreshInterval must not be negative")
	}
	if c.Impressions.Enabled && c.APIKey == "" {
		return fmt.Errorf("apiKey is required to send impressions")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg LogConfig, debug bool) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
