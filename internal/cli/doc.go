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

/*
Package cli provides the root command and global flags for flowctl.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	flowctl
	├── auth          login, logout, status, refresh
	├── api           Raw requests: get, post, put, patch, delete
	├── users         list, get, set-status
	├── workspaces    list, get
	├── workflows     list
	├── tickets       list, set-status
	├── config        show, path, set, keys, validate
	└── version       Show version

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Debug logging and a metrics summary
	--json           Output in JSON format
	--config         Path to config file
	--api-url        Override the API base URL
	--trace          Export OpenTelemetry spans

# Exit Codes

	0  success
	1  request or command failed
	2  authentication required
	3  invalid usage
*/
package cli
