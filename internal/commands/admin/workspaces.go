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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/pkg/platform"
)

// NewWorkspacesCommand creates the workspaces command group.
func NewWorkspacesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"workspace", "ws"},
		Short:   "Inspect workspaces",
	}
	cmd.AddCommand(newWorkspacesListCommand())
	cmd.AddCommand(newWorkspacesGetCommand())
	return cmd
}

func newWorkspacesListCommand() *cobra.Command {
	var (
		page           pageFlags
		search         string
		status         string
		ownerID        string
		includeDeleted bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := page.params()
			if err != nil {
				return err
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				list, err := env.Platform.Workspaces.List(ctx, platform.WorkspaceListParams{
					PageParams:     pp,
					Search:         search,
					Status:         status,
					OwnerID:        ownerID,
					IncludeDeleted: includeDeleted,
				})
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), list, "ID\tNAME\tSLUG\tPLAN\tSTATUS\tOWNER\tCREATED",
					func(w platform.Workspace) string {
						owner := w.OwnerUserID
						if w.Owner != nil && w.Owner.Email != "" {
							owner = w.Owner.Email
						}
						return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s",
							w.ID, w.Name, w.Slug, orDash(w.Plan), orDash(w.Status), orDash(owner), formatTime(w.CreatedAt))
					})
			})
		},
	}

	page.register(cmd)
	cmd.Flags().StringVar(&search, "search", "", "Match name or slug")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&ownerID, "owner", "", "Filter by owner user ID")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include deleted workspaces")
	return cmd
}

func newWorkspacesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a workspace and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				detail, err := env.Platform.Workspaces.Get(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if shared.GetJSON() {
					return shared.EmitJSON(out, detail)
				}

				ws := detail.Workspace
				if err := printFields(out, [][2]string{
					{"ID", ws.ID},
					{"Name", ws.Name},
					{"Slug", ws.Slug},
					{"Plan", ws.Plan},
					{"Status", ws.Status},
					{"Status reason", deref(ws.StatusReason)},
					{"Region", deref(ws.Region)},
					{"Owner", ws.OwnerUserID},
					{"Created", formatTime(ws.CreatedAt)},
				}); err != nil {
					return err
				}

				fmt.Fprintf(out, "\nMembers (%d):\n", detail.MembersTotal)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, m := range detail.Members {
					who := m.UserID
					if m.User != nil && m.User.Email != "" {
						who = m.User.Email
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", who, orDash(m.RoleID), formatTime(m.CreatedAt))
				}
				return tw.Flush()
			})
		},
	}
}
