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

package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/pkg/platform"
)

var userStatuses = []string{"active", "suspended"}

// NewUsersCommand creates the users command group.
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage platform accounts",
	}
	cmd.AddCommand(newUsersListCommand())
	cmd.AddCommand(newUsersGetCommand())
	cmd.AddCommand(newUsersSetStatusCommand())
	return cmd
}

func newUsersListCommand() *cobra.Command {
	var (
		page   pageFlags
		search string
		status string
		role   string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Example: `  flowctl users list --status suspended
  flowctl users list --search ada --page 2 --page-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := page.params()
			if err != nil {
				return err
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				list, err := env.Platform.Users.List(ctx, platform.UserListParams{
					PageParams: pp,
					Search:     search,
					Status:     status,
					Role:       role,
				})
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), list, "ID\tEMAIL\tROLE\tSTATUS\tLAST LOGIN",
					func(u platform.User) string {
						return fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
							u.ID, u.Email, orDash(u.Role), orDash(u.Status), formatTimePtr(u.LastLoginAt))
					})
			})
		},
	}

	page.register(cmd)
	cmd.Flags().StringVar(&search, "search", "", "Match email, username or display name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, suspended)")
	cmd.Flags().StringVar(&role, "role", "", "Filter by role")
	return cmd
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				user, err := env.Platform.Users.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printUser(cmd, user)
			})
		},
	}
}

func newUsersSetStatusCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change an account's status",
		Long: `Change an account's status to active or suspended. Suspending an
account requires --reason.

Status changes are not retried automatically.`,
		Example: `  flowctl users set-status u_123 suspended --reason "chargeback"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := oneOf("status", args[1], userStatuses); err != nil {
				return err
			}
			if args[1] == "suspended" && strings.TrimSpace(reason) == "" {
				return shared.NewUsageError("--reason is required when suspending an account", nil)
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				user, err := env.Platform.Users.UpdateStatus(ctx, args[0], args[1], reason)
				if err != nil {
					return err
				}
				return printUser(cmd, user)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the change")
	return cmd
}

func printUser(cmd *cobra.Command, u *platform.User) error {
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), u)
	}
	return printFields(cmd.OutOrStdout(), [][2]string{
		{"ID", u.ID},
		{"Email", u.Email},
		{"Username", u.Username},
		{"Name", u.DisplayName},
		{"Role", u.Role},
		{"Status", u.Status},
		{"Last login", formatTimePtr(u.LastLoginAt)},
		{"Created", formatTime(u.CreatedAt)},
	})
}

// oneOf rejects value unless it is one of allowed.
func oneOf(name, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return shared.NewUsageError(fmt.Sprintf("invalid %s %q (want one of %v)", name, value, allowed), nil)
}
