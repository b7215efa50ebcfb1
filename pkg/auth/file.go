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

package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for deriving the file encryption key.
	argon2Time        = 3
	argon2Memory      = 64 * 1024
	argon2Parallelism = 4
	argon2KeyLength   = 32

	gcmNonceSize = 12
	saltSize     = 16
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStorage keeps one file per key in a directory only the current user
// can read. When a master key is configured the file contents are sealed
// with AES-256-GCM under an Argon2id-derived key.
type FileStorage struct {
	dir       string
	masterKey []byte
	logger    *slog.Logger
	mu        sync.RWMutex
}

// FileOption configures a FileStorage.
type FileOption func(*FileStorage)

// WithMasterKey encrypts stored values with key.
func WithMasterKey(key string) FileOption {
	return func(f *FileStorage) {
		if key != "" {
			f.masterKey = []byte(key)
		}
	}
}

// WithFileLogger sets the logger used for watch errors.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *FileStorage) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// sealedValue is the on-disk layout of an encrypted value.
type sealedValue struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// NewFileStorage creates dir with 0700 permissions if needed.
func NewFileStorage(dir string, opts ...FileOption) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("file storage directory is required")
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("path exists but is not a directory: %s", dir)
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}

	f := &FileStorage{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Dir returns the directory holding the files.
func (f *FileStorage) Dir() string {
	return f.dir
}

// Path returns the file that holds key.
func (f *FileStorage) Path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get implements Storage.
func (f *FileStorage) Get(_ context.Context, key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	raw, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	if f.masterKey == nil {
		return string(raw), nil
	}

	plaintext, err := f.open(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Set implements Storage. The file is written to a temp path and renamed
// into place.
func (f *FileStorage) Set(_ context.Context, key, value string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}

	data := []byte(value)
	if f.masterKey != nil {
		sealed, err := f.seal(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		data = sealed
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete implements Storage.
func (f *FileStorage) Delete(_ context.Context, key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Watch implements Watcher using fsnotify on the storage directory.
func (f *FileStorage) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	if !validKey.MatchString(key) {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(f.dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	name := filepath.Base(f.Path(key))
	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer fsWatcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("token file watch error", "dir", f.dir, "error", err)
			}
		}
	}()

	return changes, nil
}

func (f *FileStorage) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := f.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.Marshal(sealedValue{
		Salt:  salt,
		Nonce: nonce,
		Data:  gcm.Seal(nil, nonce, plaintext, nil),
	})
}

func (f *FileStorage) open(raw []byte) ([]byte, error) {
	var sv sealedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return nil, fmt.Errorf("invalid encrypted data format: %w", err)
	}

	gcm, err := f.aead(sv.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, sv.Nonce, sv.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("wrong master key or corrupted data: %w", err)
	}
	return plaintext, nil
}

func (f *FileStorage) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(f.masterKey, salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
