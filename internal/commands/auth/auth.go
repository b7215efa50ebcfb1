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

// Package auth implements the "flowctl auth" commands.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/pkg/api"
)

// NewCommand creates the auth command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage your session",
		Long: `Log in, log out and inspect the stored session tokens.

Tokens are kept in the backend chosen by tokens.storage in the config file
(file by default, or keychain, or memory).`,
	}

	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newLogoutCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newRefreshCommand())

	return cmd
}

// Status is the JSON form of "auth status".
type Status struct {
	LoggedIn  bool       `json:"logged_in"`
	APIURL    string     `json:"api_url"`
	Storage   string     `json:"storage"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired,omitempty"`
}

func newLoginCommand() *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store session tokens",
		Example: `  flowctl auth login --email ada@example.com
  echo "$PASSWORD" | flowctl auth login --email ada@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !shared.IsNonInteractive()
			stderr := cmd.ErrOrStderr()

			if email == "" {
				if !interactive {
					return shared.NewUsageError("--email is required in non-interactive mode", nil)
				}
				var err error
				if email, err = shared.ReadLine("Email: ", cmd.InOrStdin(), stderr); err != nil {
					return err
				}
			}

			var password string
			switch {
			case passwordStdin:
				var err error
				if password, err = shared.ReadLine("", cmd.InOrStdin(), stderr); err != nil {
					return err
				}
			case interactive:
				var err error
				if password, err = shared.ReadSecret("Password: ", stderr); err != nil {
					return err
				}
			default:
				return shared.NewUsageError("use --password-stdin in non-interactive mode", nil)
			}
			if email == "" || password == "" {
				return shared.NewUsageError("email and password must not be empty", nil)
			}

			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				session, err := env.Platform.Auth.Login(ctx, email, password)
				if err != nil {
					return err
				}

				if shared.GetJSON() {
					return shared.EmitJSON(cmd.OutOrStdout(), map[string]any{
						"success": true,
						"user":    session.User,
					})
				}
				who := email
				if session.User != nil && session.User.Email != "" {
					who = session.User.Email
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", env.Config.APIURL, who)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and remove stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				out := cmd.OutOrStdout()
				if _, ok := env.Tokens.Tokens(ctx); !ok {
					if shared.GetJSON() {
						return shared.EmitJSON(out, map[string]any{"success": true, "was_logged_in": false})
					}
					fmt.Fprintln(out, "Not logged in")
					return nil
				}

				// Local tokens are gone either way; a server failure only
				// means the session could not be revoked remotely.
				if err := env.Platform.Auth.Logout(ctx); err != nil {
					env.Logger.Warn("server logout failed", "error", err)
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not revoke the session on the server: %v\n", err)
				}

				if shared.GetJSON() {
					return shared.EmitJSON(out, map[string]any{"success": true, "was_logged_in": true})
				}
				fmt.Fprintln(out, "Logged out")
				return nil
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Long: `Show whether tokens are stored, when the access token expires and, unless
--offline is set, which user the server reports for them.

Exits with code 2 when not logged in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				status := Status{
					APIURL:  env.Config.APIURL,
					Storage: env.Config.Tokens.Storage,
				}

				if _, ok := env.Tokens.Tokens(ctx); !ok {
					if shared.GetJSON() {
						_ = shared.EmitJSON(cmd.OutOrStdout(), status)
					}
					return shared.ErrNotLoggedIn
				}
				status.LoggedIn = true

				if exp, ok := env.Tokens.Expiry(ctx); ok {
					status.ExpiresAt = &exp
					status.Expired = time.Now().After(exp)
				}

				if !offline {
					user, err := env.Platform.Auth.Me(ctx)
					if err != nil {
						return err
					}
					status.Email = user.Email
					status.Role = user.Role
				}

				if shared.GetJSON() {
					return shared.EmitJSON(cmd.OutOrStdout(), status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Only inspect stored tokens, do not contact the server")

	return cmd
}

func printStatus(cmd *cobra.Command, s Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API:      %s\n", s.APIURL)
	fmt.Fprintf(out, "Storage:  %s\n", s.Storage)
	if s.Email != "" {
		fmt.Fprintf(out, "User:     %s (%s)\n", s.Email, s.Role)
	}
	if s.ExpiresAt != nil {
		state := "valid"
		if s.Expired {
			state = "expired, will refresh on next request"
		}
		fmt.Fprintf(out, "Expires:  %s (%s)\n", s.ExpiresAt.Local().Format(time.RFC3339), state)
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				if err := env.Client.Refresh(ctx); err != nil {
					if errors.Is(err, api.ErrNoRefreshToken) {
						return shared.ErrNotLoggedIn
					}
					return shared.NewAuthRequiredError("token refresh failed", err)
				}

				result := map[string]any{"success": true}
				if exp, ok := env.Tokens.Expiry(ctx); ok {
					result["expires_at"] = exp
				}
				if shared.GetJSON() {
					return shared.EmitJSON(cmd.OutOrStdout(), result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed")
				return nil
			})
		},
	}
}
