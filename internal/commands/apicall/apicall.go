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

// Package apicall implements "flowctl api", which sends an arbitrary
// request through the same pipeline the typed commands use.
package apicall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/internal/jq"
	"github.com/tombee/flowctl/pkg/api"
	"github.com/tombee/flowctl/pkg/secrets"
)

type options struct {
	params  *paramsValue
	headers []string
	data    string
	retry   int
	timeout time.Duration
	raw     bool
	jq      string
	secrets bool
}

// NewCommand creates the api command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Send a request to the platform API",
		Long: `Send an authenticated request to any endpoint of the platform API.

The path is resolved against the configured API URL unless it is absolute.
Requests go through the full client pipeline: bearer tokens are attached,
an expired token is refreshed once, and idempotent requests are retried
on server and network errors.

By default the envelope's data member is printed. Use --raw for the whole
response body, or --jq to filter it. Tokens, passwords and other secrets
in the response are masked unless --show-secrets is given.`,
		Example: `  flowctl api get /admin/users --param status=active --param page_size=50
  flowctl api patch /admin/users/u1/status --data '{"status":"suspended"}'
  flowctl api get /admin/workflows --jq '.[].name'
  flowctl api post /admin/support/tickets --data @ticket.json`,
	}

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		cmd.AddCommand(newMethodCommand(method))
	}
	return cmd
}

func newMethodCommand(method string) *cobra.Command {
	opts := &options{params: newParamsValue()}
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " <path>",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, method, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.Var(opts.params, "param", "Query parameter as key=value (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `Extra header as "Name: value" (repeatable)`)
	if method != http.MethodGet {
		f.StringVarP(&opts.data, "data", "d", "", "JSON request body, @file to read a file, or - for stdin")
	}
	f.IntVar(&opts.retry, "retry", -1, "Retry budget for this request (default depends on the method)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-attempt timeout (default from config)")
	f.BoolVar(&opts.raw, "raw", false, "Print the full response body instead of its data member")
	f.StringVar(&opts.jq, "jq", "", "Filter the output with a jq expression")
	f.BoolVar(&opts.secrets, "show-secrets", false, "Print tokens and passwords in the response unmasked")

	return cmd
}

func run(cmd *cobra.Command, method, path string, opts *options) error {
	if opts.jq != "" {
		if _, err := jq.Compile(opts.jq); err != nil {
			return shared.NewUsageError("invalid --jq expression", err)
		}
	}

	body, err := readBody(opts.data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	reqOpts := []api.RequestOption{api.WithParams(opts.params.Params())}
	if opts.retry >= 0 {
		reqOpts = append(reqOpts, api.WithRetry(opts.retry))
	}
	if opts.timeout > 0 {
		reqOpts = append(reqOpts, api.WithTimeout(opts.timeout))
	}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return shared.NewUsageError(fmt.Sprintf("invalid header %q, expected \"Name: value\"", h), nil)
		}
		reqOpts = append(reqOpts, api.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	return shared.RunWithEnv(cmd, func(ctx context.Context, env *shared.Env) error {
		var result json.RawMessage
		if opts.raw {
			result, err = env.Client.RequestRaw(ctx, method, path, body, reqOpts...)
		} else {
			err = env.Client.Do(ctx, method, path, body, &result, reqOpts...)
		}
		if err != nil {
			return err
		}
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		if !opts.secrets {
			masker := secrets.NewMasker()
			if pair, ok := env.Tokens.Tokens(ctx); ok {
				masker.AddSecret(pair.AccessToken)
				masker.AddSecret(pair.RefreshToken)
			}
			result = masker.MaskJSON(result)
		}

		out := cmd.OutOrStdout()
		if opts.jq != "" {
			return printFiltered(ctx, out, opts.jq, result)
		}
		return printJSON(out, result)
	})
}

// readBody resolves --data. It returns nil when no body was given so the
// request is sent without one.
func readBody(data string, stdin io.Reader) (any, error) {
	if data == "" {
		return nil, nil
	}

	var raw []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read body from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, shared.NewUsageError("cannot read --data file", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}

	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, shared.NewUsageError("--data is not valid JSON", nil)
	}
	return json.RawMessage(raw), nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; print as received.
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// printFiltered prints each jq result on its own line. Strings are
// printed without quotes.
func printFiltered(ctx context.Context, w io.Writer, expr string, raw json.RawMessage) error {
	results, err := jq.NewExecutor(0, 0).ExecuteJSON(ctx, expr, raw)
	if err != nil {
		return err
	}
	for _, v := range results {
		if s, ok := v.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode jq result: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}
