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

// Package auth holds the access/refresh token pair used to authenticate API
// requests and the storage backends it is persisted in.
//
// A TokenStore caches the pair in memory and falls back to its Storage on a
// cache miss. The pair is persisted under the key "auth-storage" as
//
//	{"state": {"tokens": {"accessToken": "...", "refreshToken": "..."}}}
//
// which is the layout the admin web console writes, so a token file or
// keychain entry can be shared between the two.
//
// Storage backends:
//   - MemoryStorage: process-local, the default
//   - FileStorage: one file per key under a 0700 directory, optionally
//     encrypted with a master key, watchable with fsnotify
//   - KeychainStorage: the operating system keychain via go-keyring
package auth
