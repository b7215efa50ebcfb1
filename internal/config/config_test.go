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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flowerrors "github.com/tombee/flowctl/pkg/errors"
)

// isolateEnv points XDG dirs at a temp dir and blanks every variable Load
// reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{
		"FLOWCTL_API_URL", "NEXT_PUBLIC_API_URL", "FLOWCTL_TIMEOUT", "FLOWCTL_RETRY",
		"FLOWCTL_RETRY_DELAY", "FLOWCTL_TOKEN_STORAGE", "FLOWCTL_MASTER_KEY",
		"FLOWCTL_DEBUG", "FLOWCTL_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
		"FLOWCTL_TRACING", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.APIURL != "http://localhost:8080/api/v1" {
		t.Errorf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.Retries != nil {
		t.Errorf("expected per-method retry default, got %d", *cfg.Retries)
	}
	if cfg.RetryDelay != 300*time.Millisecond {
		t.Errorf("expected retry delay 300ms, got %v", cfg.RetryDelay)
	}
	if cfg.Tokens.Storage != StorageFile {
		t.Errorf("expected file token storage, got %q", cfg.Tokens.Storage)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Errorf("expected warn/text logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errText string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "relative api url",
			modify:  func(c *Config) { c.APIURL = "/api/v1" },
			wantErr: true,
			errText: "api_url",
		},
		{
			name:    "non-http api url",
			modify:  func(c *Config) { c.APIURL = "ftp://example.com" },
			wantErr: true,
			errText: "api_url",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Timeout = 0 },
			wantErr: true,
			errText: "timeout",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: true,
			errText: "timeout",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Retries = &negative },
			wantErr: true,
			errText: "retries",
		},
		{
			name:    "max delay below delay",
			modify:  func(c *Config) { c.MaxRetryDelay = 100 * time.Millisecond },
			wantErr: true,
			errText: "max_retry_delay",
		},
		{
			name:    "zero burst",
			modify:  func(c *Config) { c.RateLimit.Burst = 0 },
			wantErr: true,
			errText: "rate_limit.burst",
		},
		{
			name:    "unknown token storage",
			modify:  func(c *Config) { c.Tokens.Storage = "floppy" },
			wantErr: true,
			errText: "tokens.storage",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errText: "log.level",
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errText: "log.format",
		},
		{
			name: "otlp without endpoint",
			modify: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = ExporterOTLPGRPC
			},
			wantErr: true,
			errText: "tracing.endpoint",
		},
		{
			name: "otlp disabled needs no endpoint",
			modify: func(c *Config) {
				c.Tracing.Exporter = ExporterOTLPHTTP
			},
		},
		{
			name:    "sample rate out of range",
			modify:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: true,
			errText: "tracing.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("expected error containing %q, got %q", tt.errText, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want default", cfg.APIURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FLOWCTL_API_URL", "https://api.example.com/api/v1")
	t.Setenv("FLOWCTL_TIMEOUT", "5s")
	t.Setenv("FLOWCTL_RETRY", "0")
	t.Setenv("FLOWCTL_RETRY_DELAY", "50ms")
	t.Setenv("FLOWCTL_TOKEN_STORAGE", "MEMORY")
	t.Setenv("FLOWCTL_MASTER_KEY", "hunter2")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SOURCE", "true")
	t.Setenv("FLOWCTL_TRACING", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != "https://api.example.com/api/v1" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Retries == nil || *cfg.Retries != 0 {
		t.Errorf("Retries = %v, want 0", cfg.Retries)
	}
	if cfg.RetryDelay != 50*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 50ms", cfg.RetryDelay)
	}
	if cfg.Tokens.Storage != StorageMemory {
		t.Errorf("Tokens.Storage = %q, want memory", cfg.Tokens.Storage)
	}
	if cfg.Tokens.MasterKey != "hunter2" {
		t.Error("master key not read from environment")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" || !cfg.Log.AddSource {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Tracing.Enabled {
		t.Error("expected tracing enabled")
	}
}

func TestLoadFromEnv_APIURLFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("NEXT_PUBLIC_API_URL", "https://fallback.example.com/api/v1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://fallback.example.com/api/v1" {
		t.Errorf("APIURL = %q, want fallback", cfg.APIURL)
	}

	t.Setenv("FLOWCTL_API_URL", "https://primary.example.com/api/v1")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://primary.example.com/api/v1" {
		t.Errorf("APIURL = %q, want primary", cfg.APIURL)
	}
}

func TestLoadFromEnv_Debug(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FLOWCTL_DEBUG", "1")
	t.Setenv("FLOWCTL_LOG_LEVEL", "error")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if !cfg.Log.AddSource {
		t.Error("FLOWCTL_DEBUG should enable source locations")
	}
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FLOWCTL_TIMEOUT", "soon")

	_, err := Load("")
	var cfgErr *flowerrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Key != "FLOWCTL_TIMEOUT" {
		t.Errorf("Key = %q, want FLOWCTL_TIMEOUT", cfgErr.Key)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := isolateEnv(t)
	path := writeFile(t, dir, `
api_url: https://staging.example.com/api/v1
timeout: 10s
retries: 1
rate_limit:
  requests_per_second: 5
tokens:
  storage: keychain
  keychain_service: flowctl-staging
tracing:
  enabled: true
  exporter: otlp-http
  endpoint: localhost:4318
  insecure: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != "https://staging.example.com/api/v1" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.Retries == nil || *cfg.Retries != 1 {
		t.Errorf("Retries = %v, want 1", cfg.Retries)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 || cfg.RateLimit.Burst != 1 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Tokens.KeychainService != "flowctl-staging" {
		t.Errorf("KeychainService = %q", cfg.Tokens.KeychainService)
	}
	// Untouched settings keep their defaults.
	if cfg.RetryDelay != 300*time.Millisecond {
		t.Errorf("RetryDelay = %v, want default", cfg.RetryDelay)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want default", cfg.Log.Level)
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := isolateEnv(t)
	path := writeFile(t, dir, "api_url: https://file.example.com/api/v1\n")
	t.Setenv("FLOWCTL_API_URL", "https://env.example.com/api/v1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://env.example.com/api/v1" {
		t.Errorf("environment should override file, got %q", cfg.APIURL)
	}
}

func TestLoadDefaultPathFile(t *testing.T) {
	isolateEnv(t)
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from default path", cfg.Log.Level)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load("/nonexistent/config.yaml")
	var cfgErr *flowerrors.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "config_file" {
		t.Fatalf("expected config_file ConfigError, got %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := isolateEnv(t)
	path := writeFile(t, dir, "timeout: [not, a, duration\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	dir := isolateEnv(t)
	path := writeFile(t, dir, "tokens:\n  storage: floppy\n")

	_, err := Load(path)
	var cfgErr *flowerrors.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "validation" {
		t.Fatalf("expected validation ConfigError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected wrapped ErrInvalidConfig, got %v", err)
	}
}

func TestTokenDir(t *testing.T) {
	dir := isolateEnv(t)

	cfg := Default()
	got, err := cfg.TokenDir()
	if err != nil {
		t.Fatalf("TokenDir() error = %v", err)
	}
	if want := filepath.Join(dir, "data", "flowctl"); got != want {
		t.Errorf("TokenDir() = %q, want %q", got, want)
	}

	cfg.Tokens.Dir = "/custom"
	if got, _ := cfg.TokenDir(); got != "/custom" {
		t.Errorf("TokenDir() = %q, want /custom", got)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		check   func(*Config) bool
		wantErr bool
	}{
		{key: "api_url", value: "https://x.example.com", check: func(c *Config) bool { return c.APIURL == "https://x.example.com" }},
		{key: "timeout", value: "2s", check: func(c *Config) bool { return c.Timeout == 2*time.Second }},
		{key: "retries", value: "3", check: func(c *Config) bool { return c.Retries != nil && *c.Retries == 3 }},
		{key: "retries", value: "default", check: func(c *Config) bool { return c.Retries == nil }},
		{key: "tokens.watch", value: "true", check: func(c *Config) bool { return c.Tokens.Watch }},
		{key: "tracing.sample_rate", value: "0.25", check: func(c *Config) bool { return c.Tracing.SampleRate == 0.25 }},
		{key: "log.level", value: "DEBUG", check: func(c *Config) bool { return c.Log.Level == "debug" }},
		{key: "timeout", value: "forever", wantErr: true},
		{key: "tokens.watch", value: "maybe", wantErr: true},
		{key: "no.such.key", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("Set(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}
