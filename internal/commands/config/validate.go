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

package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/internal/config"
	"github.com/tombee/flowctl/pkg/auth"
	pkgerrors "github.com/tombee/flowctl/pkg/errors"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the configuration file together with environment overrides.

Checks performed:
  - YAML syntax and field types
  - Value ranges (timeouts, retries, rate limit, sample rate)
  - Token storage backend is usable
  - API URL does not send tokens in clear text to a remote host

With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  flowctl config validate

  # Validate with warnings as errors
  flowctl config validate --strict

  # Get validation result as JSON
  flowctl config validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(w io.Writer, strict bool) error {
	cfgPath, err := configPath()
	if err != nil {
		return err
	}

	result := ValidationResult{Path: cfgPath}
	if _, statErr := os.Stat(cfgPath); errors.Is(statErr, os.ErrNotExist) {
		result.Warnings = append(result.Warnings, "No config file found; defaults and environment variables are in effect.")
	}

	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		result.Errors = loadErrors(err)
	} else {
		result.Warnings = append(result.Warnings, validateConfig(cfg)...)
	}
	result.Valid = len(result.Errors) == 0

	return outputValidationResult(w, result, strict)
}

// loadErrors splits a load failure into one message per problem.
func loadErrors(err error) []string {
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) && errors.Is(err, config.ErrInvalidConfig) {
		var out []string
		for _, line := range strings.Split(cfgErr.Cause.Error(), "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
			if line == "" || strings.HasPrefix(line, config.ErrInvalidConfig.Error()) {
				continue
			}
			out = append(out, line)
		}
		if len(out) > 0 {
			return out
		}
	}
	if cfgErr != nil && cfgErr.Cause != nil {
		return []string{fmt.Sprintf("%s: %v", cfgErr.Error(), cfgErr.Cause)}
	}
	return []string{err.Error()}
}

// validateConfig reports problems that do not stop flowctl from running.
func validateConfig(cfg *config.Config) []string {
	var warnings []string

	if u, err := url.Parse(cfg.APIURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		warnings = append(warnings, fmt.Sprintf("api_url %s is not HTTPS; tokens will be sent in clear text", cfg.APIURL))
	}

	switch cfg.Tokens.Storage {
	case config.StorageMemory:
		warnings = append(warnings, "tokens.storage is memory; logins will not persist between commands")
	case config.StorageKeychain:
		if !auth.NewKeychainStorage(cfg.Tokens.KeychainService).Available() {
			warnings = append(warnings, "system keychain is unavailable; tokens will be stored in files instead")
		}
	case config.StorageFile:
		if cfg.Tokens.MasterKey == "" {
			warnings = append(warnings, "FLOWCTL_MASTER_KEY is not set; token files are protected by permissions only")
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == config.ExporterNone {
		warnings = append(warnings, "tracing.enabled is set but tracing.exporter is none")
	}
	if cfg.Retries != nil && *cfg.Retries > 5 {
		warnings = append(warnings, fmt.Sprintf("retries is %d; failed requests may take a long time to report", *cfg.Retries))
	}

	return warnings
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// outputValidationResult prints the result and returns an error when it
// should fail the command.
func outputValidationResult(w io.Writer, result ValidationResult, strict bool) error {
	if shared.GetJSON() {
		if err := shared.EmitJSON(w, result); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		if result.Valid {
			fmt.Fprintln(w, "Configuration is valid")
		} else {
			fmt.Fprintln(w, "Configuration validation failed")
		}
		fmt.Fprintln(w)

		if len(result.Errors) > 0 {
			fmt.Fprintln(w, "Errors:")
			for _, err := range result.Errors {
				fmt.Fprintf(w, "  x %s\n", err)
			}
			fmt.Fprintln(w)
		}

		if len(result.Warnings) > 0 {
			fmt.Fprintln(w, "Warnings:")
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "  ! %s\n", warn)
			}
			fmt.Fprintln(w)
		}

		if result.Valid && len(result.Warnings) == 0 {
			fmt.Fprintln(w, "No issues found.")
		}
	}

	if !result.Valid {
		return &shared.ExitError{Code: shared.ExitFailure, Message: "configuration is invalid"}
	}

	// In strict mode, warnings become errors
	if strict && len(result.Warnings) > 0 {
		return &shared.ExitError{Code: shared.ExitFailure, Message: "validation failed (strict mode: warnings treated as errors)"}
	}

	return nil
}
