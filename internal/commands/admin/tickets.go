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

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/pkg/platform"
)

var ticketStatuses = []string{"open", "in_progress", "waiting_on_customer", "resolved", "closed"}

// NewTicketsCommand creates the tickets command group.
func NewTicketsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket"},
		Short:   "Manage support tickets",
	}
	cmd.AddCommand(newTicketsListCommand())
	cmd.AddCommand(newTicketsSetStatusCommand())
	return cmd
}

func newTicketsListCommand() *cobra.Command {
	var (
		page        pageFlags
		status      string
		priority    string
		category    string
		search      string
		workspaceID string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List support tickets",
		Example: `  flowctl tickets list --status open --priority high`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := page.params()
			if err != nil {
				return err
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				list, err := env.Platform.Support.ListTickets(ctx, platform.TicketListParams{
					PageParams:  pp,
					Status:      status,
					Priority:    priority,
					Category:    category,
					Search:      search,
					WorkspaceID: workspaceID,
				})
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), list, "REFERENCE\tSUBJECT\tREQUESTER\tPRIORITY\tSTATUS\tSLA DUE",
					func(t platform.SupportTicket) string {
						return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
							orDash(t.Reference), t.Subject, t.RequesterEmail, orDash(t.Priority), orDash(t.Status), formatTimePtr(t.SLAResolveDue))
					})
			})
		},
	}

	page.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&search, "search", "", "Match reference, subject or requester")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Filter by workspace ID")
	return cmd
}

func newTicketsSetStatusCommand() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a ticket to a new status",
		Long: `Move a ticket to open, in_progress, waiting_on_customer, resolved or closed.
The server rejects transitions it does not allow.`,
		Example: `  flowctl tickets set-status 8c1e... resolved --note "fixed in 2.4.1"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := oneOf("status", args[1], ticketStatuses); err != nil {
				return err
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				ticket, err := env.Platform.Support.UpdateTicketStatus(ctx, args[0], args[1], note)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if shared.GetJSON() {
					return shared.EmitJSON(out, ticket)
				}
				return printFields(out, [][2]string{
					{"ID", ticket.ID},
					{"Reference", ticket.Reference},
					{"Subject", ticket.Subject},
					{"Status", ticket.Status},
					{"Note", deref(ticket.StatusNote)},
					{"Updated", formatTime(ticket.UpdatedAt)},
				})
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note recorded with the change")
	return cmd
}
