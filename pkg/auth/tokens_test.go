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
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct{ MemoryStorage }

func (f *failingStorage) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestTokenStore_Empty(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	assert.Equal(t, "", store.AccessToken(ctx))
	assert.Equal(t, "", store.RefreshToken(ctx))
	_, ok := store.Tokens(ctx)
	assert.False(t, ok)
}

func TestTokenStore_SetThenGet(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "A", "R"))
	assert.Equal(t, "A", store.AccessToken(ctx))
	assert.Equal(t, "R", store.RefreshToken(ctx))

	pair, ok := store.Tokens(ctx)
	assert.True(t, ok)
	assert.Equal(t, TokenPair{AccessToken: "A", RefreshToken: "R"}, pair)
}

func TestTokenStore_ClearThenGet(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewTokenStore(WithStorage(storage))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "A", "R"))
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, "", store.AccessToken(ctx))
	assert.Equal(t, "", store.RefreshToken(ctx))

	// A fresh store over the same storage sees nothing either.
	other := NewTokenStore(WithStorage(storage))
	assert.Equal(t, "", other.AccessToken(ctx))
}

// parkedStorage holds its first Get after reading the stored value until
// release is closed.
type parkedStorage struct {
	MemoryStorage
	first   atomic.Bool
	parked  chan struct{}
	release chan struct{}
}

func (p *parkedStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := p.MemoryStorage.Get(ctx, key)
	if p.first.CompareAndSwap(false, true) {
		close(p.parked)
		<-p.release
	}
	return value, err
}

func TestTokenStore_ClearDuringLoadWins(t *testing.T) {
	ctx := context.Background()
	storage := &parkedStorage{parked: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, NewTokenStore(WithStorage(&storage.MemoryStorage)).Set(ctx, "old-access", "old-refresh"))

	store := NewTokenStore(WithStorage(storage))
	done := make(chan string)
	go func() { done <- store.AccessToken(ctx) }()

	<-storage.parked
	require.NoError(t, store.Clear(ctx))
	close(storage.release)
	<-done

	assert.Equal(t, "", store.AccessToken(ctx))
	assert.Equal(t, "", store.RefreshToken(ctx))
}

func TestTokenStore_SetDuringLoadWins(t *testing.T) {
	ctx := context.Background()
	storage := &parkedStorage{parked: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, NewTokenStore(WithStorage(&storage.MemoryStorage)).Set(ctx, "old-access", "old-refresh"))

	store := NewTokenStore(WithStorage(storage))
	done := make(chan string)
	go func() { done <- store.AccessToken(ctx) }()

	<-storage.parked
	require.NoError(t, store.Set(ctx, "new-access", "new-refresh"))
	close(storage.release)

	assert.Equal(t, "new-access", <-done)
	assert.Equal(t, "new-access", store.AccessToken(ctx))
	assert.Equal(t, "new-refresh", store.RefreshToken(ctx))
}

func TestTokenStore_PersistedLayout(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewTokenStore(WithStorage(storage))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "acc", "ref"))

	raw, err := storage.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"tokens":{"accessToken":"acc","refreshToken":"ref"}}}`, raw)
}

func TestTokenStore_FallsBackToStorage(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, StorageKey, `{
		"state": {
			"user": {"id": "admin_1"},
			"tokens": {"accessToken": "stored-access", "refreshToken": "stored-refresh"},
			"isAuthenticated": true
		},
		"version": 0
	}`))

	store := NewTokenStore(WithStorage(storage))
	assert.Equal(t, "stored-access", store.AccessToken(ctx))
	assert.Equal(t, "stored-refresh", store.RefreshToken(ctx))

	// Cache wins once populated.
	require.NoError(t, storage.Delete(ctx, StorageKey))
	assert.Equal(t, "stored-access", store.AccessToken(ctx))

	store.Invalidate()
	assert.Equal(t, "", store.AccessToken(ctx))
}

func TestTokenStore_PreservesOtherState(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, StorageKey, `{"state":{"user":{"id":"u1"},"tokens":null},"version":2}`))

	store := NewTokenStore(WithStorage(storage))
	require.NoError(t, store.Set(ctx, "A", "R"))

	raw, err := storage.Get(ctx, StorageKey)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	state := doc["state"].(map[string]any)
	assert.Equal(t, map[string]any{"id": "u1"}, state["user"])
	assert.Equal(t, float64(2), doc["version"])
	assert.Equal(t, map[string]any{"accessToken": "A", "refreshToken": "R"}, state["tokens"])

	require.NoError(t, store.Clear(ctx))
	raw, _ = storage.Get(ctx, StorageKey)
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	state = doc["state"].(map[string]any)
	assert.Nil(t, state["tokens"])
	assert.NotNil(t, state["user"])
}

func TestTokenStore_CorruptStorage(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, StorageKey, "not json"))

	store := NewTokenStore(WithStorage(storage))
	assert.Equal(t, "", store.AccessToken(ctx))

	require.NoError(t, store.Set(ctx, "A", "R"))
	assert.Equal(t, "A", store.AccessToken(ctx))
}

func TestTokenStore_SetCachesOnStorageFailure(t *testing.T) {
	store := NewTokenStore(WithStorage(&failingStorage{}))
	ctx := context.Background()

	err := store.Set(ctx, "A", "R")
	assert.Error(t, err)
	assert.Equal(t, "A", store.AccessToken(ctx))
}

func TestTokenStore_Follow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	store := NewTokenStore(WithStorage(fs))
	require.NoError(t, store.Set(ctx, "old-access", "old-refresh"))
	require.NoError(t, store.Follow(ctx))

	// Another process logs in and rewrites the file.
	other := NewTokenStore(WithStorage(fs))
	require.NoError(t, other.Set(ctx, "new-access", "new-refresh"))

	assert.Eventually(t, func() bool {
		return store.AccessToken(ctx) == "new-access"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTokenStore_FollowNonWatchable(t *testing.T) {
	store := NewTokenStore()
	assert.NoError(t, store.Follow(context.Background()))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "admin_1",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "got %v want %v", got, exp)

	store := NewTokenStore()
	require.NoError(t, store.Set(context.Background(), signed, "r"))
	got, ok = store.Expiry(context.Background())
	assert.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
	_, ok = TokenExpiry("")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}
