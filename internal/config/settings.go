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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLockTimeout is returned when another flowctl process holds the
// config file lock for longer than lockTimeout.
var ErrLockTimeout = errors.New("configuration locked by another process")

const (
	lockTimeout  = 5 * time.Second
	lockInterval = 50 * time.Millisecond
)

// settingsHeader is written above the YAML so a hand-edited file explains
// where its values came from.
const settingsHeader = "# flowctl configuration. Edit by hand or with `flowctl config set`.\n" +
	"# Environment variables (FLOWCTL_*) override these values at run time.\n"

// fileLock is an advisory flock on "<config>.lock".
type fileLock struct {
	f *os.File
}

// lockSettings blocks until the lock for path is held or lockTimeout
// passes.
func lockSettings(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &fileLock{f: f}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("failed to lock config file: %w", err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, ErrLockTimeout
		}
		time.Sleep(lockInterval)
	}
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	unlockErr := syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock config file: %w", unlockErr)
	}
	return closeErr
}

func withSettingsLock(path string, fn func(path string) error) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	lock, err := lockSettings(path)
	if err != nil {
		return err
	}
	defer lock.release()
	return fn(path)
}

// readSettings parses the file without environment overrides, so that a
// later write does not persist them. A missing file yields Default().
func readSettings(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// writeSettings replaces path through a temp file and rename. Tokens.MasterKey
// is never serialized.
func writeSettings(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(settingsHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set config file mode: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// LoadSettings reads the config file at path (ConfigPath() when empty)
// under the file lock. Environment overrides are not applied.
func LoadSettings(path string) (*Config, error) {
	var cfg *Config
	err := withSettingsLock(path, func(path string) error {
		var err error
		cfg, err = readSettings(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveSettings validates cfg and writes it to path under the file lock.
func SaveSettings(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return withSettingsLock(path, func(path string) error {
		return writeSettings(path, cfg)
	})
}

// UpdateSettings loads the file, applies fn and saves the result under a
// single lock. An invalid result is not written.
func UpdateSettings(path string, fn func(*Config) error) (*Config, error) {
	var cfg *Config
	err := withSettingsLock(path, func(path string) error {
		var err error
		if cfg, err = readSettings(path); err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return writeSettings(path, cfg)
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
