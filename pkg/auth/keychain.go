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
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultKeychainService is the service name used for keychain entries.
const DefaultKeychainService = "flowctl"

// KeychainStorage stores values in the system keychain.
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
type KeychainStorage struct {
	service string
}

// NewKeychainStorage returns a KeychainStorage using service as the
// keychain service name, or DefaultKeychainService when empty.
func NewKeychainStorage(service string) *KeychainStorage {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStorage{service: service}
}

// Available probes the keychain with a lookup of a key that never exists.
// Anything other than a not-found answer means the keychain is locked or
// missing.
func (k *KeychainStorage) Available() bool {
	_, err := keyring.Get(k.service, "__flowctl_availability_test__")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Get implements Storage.
func (k *KeychainStorage) Get(_ context.Context, key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		return "", k.wrap(key, err)
	}
	return value, nil
}

// Set implements Storage.
func (k *KeychainStorage) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return k.wrap(key, err)
	}
	return nil
}

// Delete implements Storage.
func (k *KeychainStorage) Delete(_ context.Context, key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return k.wrap(key, err)
	}
	return nil
}

func (k *KeychainStorage) wrap(key string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if isKeychainUnavailableError(err) {
		return fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	return fmt.Errorf("keychain error: %w", err)
}

// isKeychainUnavailableError checks if an error indicates the keychain is
// locked or inaccessible.
func isKeychainUnavailableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"locked",
		"cannot access",
		"permission denied",
		"failed to unlock",
		"user interaction required",
		"secret service",
		"dbus",
		"user canceled",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
