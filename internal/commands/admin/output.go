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

// Package admin implements the administrative resource commands: users,
// workspaces, workflows and tickets.
package admin

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/pkg/api"
	"github.com/tombee/flowctl/pkg/platform"
)

// pageFlags are the paging flags shared by every list command.
type pageFlags struct {
	page     int
	pageSize int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.page, "page", 0, "Page number (default from server)")
	cmd.Flags().IntVar(&p.pageSize, "page-size", 0, "Items per page (default from server)")
}

func (p *pageFlags) params() (platform.PageParams, error) {
	if p.page < 0 || p.pageSize < 0 {
		return platform.PageParams{}, shared.NewUsageError("--page and --page-size must not be negative", nil)
	}
	return platform.PageParams{Page: p.page, PageSize: p.pageSize}, nil
}

// printList writes list as JSON when --json is set, otherwise as a table
// followed by a paging summary. row renders one item as tab-separated
// columns matching header.
func printList[T any](w io.Writer, list api.List[T], header string, row func(T) string) error {
	if shared.GetJSON() {
		return shared.EmitJSON(w, list)
	}

	if len(list.Items) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, item := range list.Items {
		fmt.Fprintln(tw, row(item))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nShowing %d of %d (page %d)\n", len(list.Items), list.Total, list.Page)
	return nil
}

// printFields writes label/value pairs aligned in two columns.
func printFields(w io.Writer, fields [][2]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", f[0], f[1])
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
