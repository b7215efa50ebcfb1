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

package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/flowctl/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for flowctl
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowctl",
		Short: "flowctl - command-line client for the workflow platform API",
		Long: `flowctl talks to the workflow platform REST API. It keeps your session
tokens, refreshes them when they expire and retries idempotent requests
that fail with a server or network error.

Run 'flowctl auth login' to get started.
Run 'flowctl api get /users/me' to make a raw request.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	flags := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(flags.JSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(flags.Config, "config", "", "Path to config file (default: ~/.config/flowctl/config.yaml)")
	cmd.PersistentFlags().StringVar(flags.APIURL, "api-url", "", "API base URL (overrides FLOWCTL_API_URL)")
	cmd.PersistentFlags().BoolVar(flags.Trace, "trace", false, "Export OpenTelemetry spans for each request")

	// Flag parse errors are usage errors.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return shared.NewUsageError(c.CommandPath(), err)
	})

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
