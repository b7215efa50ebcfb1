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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/flowctl/internal/cli"
	"github.com/tombee/flowctl/internal/commands/admin"
	"github.com/tombee/flowctl/internal/commands/apicall"
	"github.com/tombee/flowctl/internal/commands/auth"
	"github.com/tombee/flowctl/internal/commands/config"
	versioncmd "github.com/tombee/flowctl/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Session
	rootCmd.AddCommand(auth.NewCommand())

	// Raw API access
	rootCmd.AddCommand(apicall.NewCommand())

	// Admin resources
	rootCmd.AddCommand(admin.NewUsersCommand())
	rootCmd.AddCommand(admin.NewWorkspacesCommand())
	rootCmd.AddCommand(admin.NewWorkflowsCommand())
	rootCmd.AddCommand(admin.NewTicketsCommand())

	// Configuration
	rootCmd.AddCommand(config.NewConfigCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Ctrl-C cancels in-flight requests.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
