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

// NewWorkflowsCommand creates the workflows command group.
func NewWorkflowsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"workflow", "wf"},
		Short:   "Inspect workflows across workspaces",
	}
	cmd.AddCommand(newWorkflowsListCommand())
	return cmd
}

func newWorkflowsListCommand() *cobra.Command {
	var (
		page        pageFlags
		search      string
		status      string
		workspaceID string
		trigger     string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workflows",
		Example: `  flowctl workflows list --workspace ws_123 --trigger schedule`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := page.params()
			if err != nil {
				return err
			}
			return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
				list, err := env.Platform.Workflows.List(ctx, platform.WorkflowListParams{
					PageParams:  pp,
					Search:      search,
					Status:      status,
					WorkspaceID: workspaceID,
					TriggerType: trigger,
				})
				if err != nil {
					return err
				}
				return printList(cmd.OutOrStdout(), list, "ID\tNAME\tWORKSPACE\tSTATUS\tTRIGGER\tVERSION\tLAST RUN",
					func(w platform.Workflow) string {
						return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%d\t%s",
							w.ID, w.Name, w.WorkspaceID, orDash(w.Status), orDash(w.TriggerType), w.Version, formatTimePtr(w.LastRunAt))
					})
			})
		},
	}

	page.register(cmd)
	cmd.Flags().StringVar(&search, "search", "", "Match name or slug")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Filter by workspace ID")
	cmd.Flags().StringVar(&trigger, "trigger", "", "Filter by trigger type")
	return cmd
}
