// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	flowerrors "github.com/tombee/flowctl/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is used when neither the config file nor the
	// environment names a backend.
	DefaultAPIURL = "http://localhost:8080/api/v1"

	// Token storage backends.
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageKeychain = "keychain"

	// Trace exporters.
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config is the complete flowctl configuration.
type Config struct {
	// APIURL is the backend base URL, including the API prefix.
	// Environment: FLOWCTL_API_URL, then NEXT_PUBLIC_API_URL
	// Default: http://localhost:8080/api/v1
	APIURL string `yaml:"api_url"`

	// Timeout bounds each request attempt.
	// Environment: FLOWCTL_TIMEOUT
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Retries overrides the per-method retry default (1 for GET, HEAD and
	// OPTIONS, 0 otherwise). Unset keeps the default.
	// Environment: FLOWCTL_RETRY
	Retries *int `yaml:"retries,omitempty"`

	// RetryDelay is the base backoff delay.
	// Environment: FLOWCTL_RETRY_DELAY
	// Default: 300ms
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxRetryDelay caps the backoff delay.
	// Default: 10s
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent,omitempty"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tokens    TokenConfig     `yaml:"tokens"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// RateLimitConfig paces outgoing requests. A zero rate disables pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// TokenConfig selects where the token pair is persisted.
type TokenConfig struct {
	// Storage is one of memory, file or keychain.
	// Environment: FLOWCTL_TOKEN_STORAGE
	// Default: file
	Storage string `yaml:"storage"`

	// Dir holds the file backend's data. Defaults to $XDG_DATA_HOME/flowctl.
	Dir string `yaml:"dir,omitempty"`

	// MasterKey enables encryption for the file backend. It is read from
	// the environment only and never written back to disk.
	// Environment: FLOWCTL_MASTER_KEY
	MasterKey string `yaml:"-"`

	// KeychainService is the service name used with the OS keychain.
	// Default: flowctl
	KeychainService string `yaml:"keychain_service,omitempty"`

	// Watch reloads tokens when another process rotates them.
	Watch bool `yaml:"watch"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: FLOWCTL_DEBUG (forces debug), FLOWCTL_LOG_LEVEL, LOG_LEVEL
	// Default: warn
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	// Enabled turns on span export.
	// Environment: FLOWCTL_TRACING
	Enabled bool `yaml:"enabled"`

	// Exporter is one of none, stdout, otlp-http or otlp-grpc.
	// Default: stdout
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP receiver address.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for OTLP export.
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every OTLP export.
	Headers map[string]string `yaml:"headers,omitempty"`

	// SampleRate is the fraction of traces recorded (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `yaml:"sample_rate"`

	// ServiceName identifies flowctl in traces.
	// Default: flowctl
	ServiceName string `yaml:"service_name,omitempty"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		APIURL:        DefaultAPIURL,
		Timeout:       30 * time.Second,
		RetryDelay:    300 * time.Millisecond,
		MaxRetryDelay: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst: 1,
		},
		Tokens: TokenConfig{
			Storage:         StorageFile,
			KeychainService: "flowctl",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    ExporterStdout,
			SampleRate:  1.0,
			ServiceName: "flowctl",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at
// configPath and the environment, in that order. An empty configPath uses
// ConfigPath(); that default file may be absent, an explicit one may not.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		if p, err := ConfigPath(); err == nil {
			configPath = p
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, &flowerrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", configPath),
					Cause:  err,
				}
			}
		}
	}

	// Fill zero values left by a minimal file.
	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &flowerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = d.MaxRetryDelay
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = d.RateLimit.Burst
	}
	if c.Tokens.Storage == "" {
		c.Tokens.Storage = d.Tokens.Storage
	}
	if c.Tokens.KeychainService == "" {
		c.Tokens.KeychainService = d.Tokens.KeychainService
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv applies environment overrides. Malformed numeric or
// duration values are reported rather than ignored.
func (c *Config) loadFromEnv() error {
	if val := firstEnv("FLOWCTL_API_URL", "NEXT_PUBLIC_API_URL"); val != "" {
		c.APIURL = val
	}

	if val := os.Getenv("FLOWCTL_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return envError("FLOWCTL_TIMEOUT", err)
		}
		c.Timeout = d
	}
	if val := os.Getenv("FLOWCTL_RETRY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("FLOWCTL_RETRY", err)
		}
		c.Retries = &n
	}
	if val := os.Getenv("FLOWCTL_RETRY_DELAY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return envError("FLOWCTL_RETRY_DELAY", err)
		}
		c.RetryDelay = d
	}

	if val := os.Getenv("FLOWCTL_TOKEN_STORAGE"); val != "" {
		c.Tokens.Storage = strings.ToLower(val)
	}
	if val := os.Getenv("FLOWCTL_MASTER_KEY"); val != "" {
		c.Tokens.MasterKey = val
	}

	if truthy(os.Getenv("FLOWCTL_DEBUG")) {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	} else if val := firstEnv("FLOWCTL_LOG_LEVEL", "LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = truthy(val)
	}

	if val := os.Getenv("FLOWCTL_TRACING"); val != "" {
		c.Tracing.Enabled = truthy(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api_url must be an absolute http(s) URL, got %q", c.APIURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout must be positive, got %v", c.Timeout))
	}
	if c.Retries != nil && *c.Retries < 0 {
		errs = append(errs, fmt.Sprintf("retries must be non-negative, got %d", *c.Retries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Sprintf("retry_delay must be non-negative, got %v", c.RetryDelay))
	}
	if c.MaxRetryDelay < c.RetryDelay {
		errs = append(errs, fmt.Sprintf("max_retry_delay (%v) must not be less than retry_delay (%v)", c.MaxRetryDelay, c.RetryDelay))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("rate_limit.requests_per_second must be non-negative, got %v", c.RateLimit.RequestsPerSecond))
	}
	if c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Sprintf("rate_limit.burst must be at least 1, got %d", c.RateLimit.Burst))
	}

	switch c.Tokens.Storage {
	case StorageMemory, StorageFile, StorageKeychain:
	default:
		errs = append(errs, fmt.Sprintf("tokens.storage must be one of [memory, file, keychain], got %q", c.Tokens.Storage))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLPHTTP, ExporterOTLPGRPC:
		if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("tracing.endpoint is required for the %s exporter", c.Tracing.Exporter))
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [none, stdout, otlp-http, otlp-grpc], got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// TokenDir returns the directory used by the file token backend.
func (c *Config) TokenDir() (string, error) {
	if c.Tokens.Dir != "" {
		return c.Tokens.Dir, nil
	}
	return DataDir()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func truthy(val string) bool {
	val = strings.ToLower(val)
	return val == "1" || val == "true" || val == "yes"
}

func envError(key string, err error) error {
	return &flowerrors.ConfigError{
		Key:    key,
		Reason: "invalid environment value",
		Cause:  err,
	}
}
