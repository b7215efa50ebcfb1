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

package shared

import "testing"

// isolatedVars are cleared by IsolateForTest so the developer's own
// environment cannot leak into command tests.
var isolatedVars = []string{
	"FLOWCTL_API_URL", "NEXT_PUBLIC_API_URL", "FLOWCTL_TIMEOUT", "FLOWCTL_RETRY",
	"FLOWCTL_RETRY_DELAY", "FLOWCTL_MASTER_KEY", "FLOWCTL_DEBUG", "FLOWCTL_LOG_LEVEL", "LOG_LEVEL",
	"LOG_FORMAT", "LOG_SOURCE", "FLOWCTL_TRACING", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// IsolateForTest points config and token storage at temporary directories,
// targets apiURL, and resets global flags for the duration of t.
func IsolateForTest(t testing.TB, apiURL string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, name := range isolatedVars {
		t.Setenv(name, "")
	}
	t.Setenv("FLOWCTL_TOKEN_STORAGE", "file")
	t.Setenv("FLOWCTL_RETRY_DELAY", "1ms")
	t.Setenv("FLOWCTL_NON_INTERACTIVE", "true")

	ResetFlagsForTest()
	t.Cleanup(ResetFlagsForTest)
	SetAPIURLForTest(apiURL)
}
