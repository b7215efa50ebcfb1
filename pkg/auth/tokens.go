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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StorageKey is the key the token pair is persisted under.
const StorageKey = "auth-storage"

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// persistedState mirrors the stored document. Fields other than tokens are
// kept as raw JSON so writes do not drop them.
type persistedState struct {
	State   map[string]json.RawMessage `json:"state"`
	Version json.RawMessage            `json:"version,omitempty"`
}

// TokenStore is the process-wide holder of the current token pair.
// It is safe for concurrent use.
type TokenStore struct {
	storage Storage
	logger  *slog.Logger

	mu      sync.RWMutex
	access  string
	refresh string
	// gen is bumped by Set, Clear and Invalidate. A storage read started
	// under an older generation must not populate the cache.
	gen uint64
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithStorage sets the persistent backend. Default: a new MemoryStorage.
func WithStorage(s Storage) TokenStoreOption {
	return func(t *TokenStore) {
		if s != nil {
			t.storage = s
		}
	}
}

// WithLogger sets the logger used for storage failures.
func WithLogger(logger *slog.Logger) TokenStoreOption {
	return func(t *TokenStore) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTokenStore creates a TokenStore.
func NewTokenStore(opts ...TokenStoreOption) *TokenStore {
	t := &TokenStore{
		storage: NewMemoryStorage(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Storage returns the backend the store persists to.
func (t *TokenStore) Storage() Storage {
	return t.storage
}

// AccessToken returns the cached access token, loading the stored pair on
// a miss. It returns "" when no token is available.
func (t *TokenStore) AccessToken(ctx context.Context) string {
	return t.cached(ctx).AccessToken
}

// RefreshToken returns the cached refresh token, loading the stored pair on
// a miss. It returns "" when no token is available.
func (t *TokenStore) RefreshToken(ctx context.Context) string {
	return t.cached(ctx).RefreshToken
}

// cached returns the cached pair, filling it from storage when it is empty.
// The storage read happens outside the lock; its result is dropped if Set,
// Clear or Invalidate ran in the meantime.
func (t *TokenStore) cached(ctx context.Context) TokenPair {
	t.mu.RLock()
	pair := TokenPair{AccessToken: t.access, RefreshToken: t.refresh}
	gen := t.gen
	t.mu.RUnlock()
	if pair.AccessToken != "" || pair.RefreshToken != "" {
		return pair
	}

	stored, ok := t.load(ctx)
	if !ok {
		return TokenPair{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen == gen && t.access == "" && t.refresh == "" {
		t.access = stored.AccessToken
		t.refresh = stored.RefreshToken
	}
	return TokenPair{AccessToken: t.access, RefreshToken: t.refresh}
}

// Tokens returns both tokens and whether an access token is present.
func (t *TokenStore) Tokens(ctx context.Context) (TokenPair, bool) {
	pair := TokenPair{
		AccessToken:  t.AccessToken(ctx),
		RefreshToken: t.RefreshToken(ctx),
	}
	return pair, pair.AccessToken != ""
}

// Set replaces both tokens in the cache and in storage. The cache is
// updated even when the storage write fails; the error is returned.
func (t *TokenStore) Set(ctx context.Context, access, refresh string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.access = access
	t.refresh = refresh
	t.gen++

	if err := t.persist(ctx, &TokenPair{AccessToken: access, RefreshToken: refresh}); err != nil {
		t.logger.Warn("failed to persist tokens", "error", err)
		return err
	}
	return nil
}

// Clear removes both tokens from the cache and from storage.
func (t *TokenStore) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.access = ""
	t.refresh = ""
	t.gen++

	if err := t.persist(ctx, nil); err != nil {
		t.logger.Warn("failed to clear stored tokens", "error", err)
		return err
	}
	return nil
}

// Invalidate drops the cached pair so the next read goes to storage.
func (t *TokenStore) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = ""
	t.refresh = ""
	t.gen++
}

// Follow invalidates the cache whenever the storage reports an external
// change, until ctx is done. It is a no-op for storages that cannot watch.
func (t *TokenStore) Follow(ctx context.Context) error {
	w, ok := t.storage.(Watcher)
	if !ok {
		return nil
	}

	changes, err := w.Watch(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("watch tokens: %w", err)
	}

	go func() {
		for range changes {
			t.logger.Debug("stored tokens changed, dropping cache")
			t.Invalidate()
		}
	}()
	return nil
}

// Expiry returns the exp claim of the current access token. The signature
// is not verified; the result is only a hint for display and pre-emptive
// refresh.
func (t *TokenStore) Expiry(ctx context.Context) (time.Time, bool) {
	return TokenExpiry(t.AccessToken(ctx))
}

// TokenExpiry decodes the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// load reads the stored pair. Missing or unreadable state reports false.
func (t *TokenStore) load(ctx context.Context) (TokenPair, bool) {
	doc, err := t.readState(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.logger.Debug("failed to read stored tokens", "error", err)
		}
		return TokenPair{}, false
	}

	raw, ok := doc.State["tokens"]
	if !ok {
		return TokenPair{}, false
	}

	var pair *TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil || pair == nil {
		return TokenPair{}, false
	}
	return *pair, true
}

// persist writes pair (or null) into the stored document, keeping any
// other state fields. Callers hold t.mu.
func (t *TokenStore) persist(ctx context.Context, pair *TokenPair) error {
	doc, err := t.readState(ctx)
	if err != nil {
		doc = persistedState{}
	}
	if doc.State == nil {
		doc.State = make(map[string]json.RawMessage)
	}

	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	doc.State["tokens"] = raw

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode token state: %w", err)
	}
	if err := t.storage.Set(ctx, StorageKey, string(encoded)); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

func (t *TokenStore) readState(ctx context.Context) (persistedState, error) {
	value, err := t.storage.Get(ctx, StorageKey)
	if err != nil {
		return persistedState{}, err
	}

	var doc persistedState
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return persistedState{}, fmt.Errorf("decode token state: %w", err)
	}
	return doc, nil
}
