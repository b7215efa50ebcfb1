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

// Package config implements the "flowctl config" commands.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowctl/internal/commands/shared"
	"github.com/tombee/flowctl/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage flowctl configuration.

Settings are read from the config file, then overridden by environment
variables (FLOWCTL_API_URL, FLOWCTL_TIMEOUT, FLOWCTL_RETRY, ...) and
finally by global flags such as --api-url.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  set      - Change a value in the config file
  keys     - List the keys accepted by set
  validate - Check the configuration for problems`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigKeysCommand())
	cmd.AddCommand(NewValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration flowctl would use, after environment
variables and global flags are applied.

Secret values are masked. The token master key is never printed.
Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a value in the config file",
		Long: `Write a single value to the config file, creating it if needed.
The resulting file is validated before it is saved.

Run 'flowctl config keys' for the list of keys.`,
		Example: `  flowctl config set api_url https://admin.example.com/api/v1
  flowctl config set timeout 10s
  flowctl config set retries default
  flowctl config set tokens.storage keychain`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func newConfigKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys accepted by 'config set'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), config.Keys())
			}
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfgPath, err := configPath()
	if err != nil {
		return err
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	masterKeySet := cfg.Tokens.MasterKey != ""
	masked := maskSensitiveConfig(cfg)

	if shared.GetJSON() {
		return outputConfigJSON(cmd.OutOrStdout(), masked, masterKeySet)
	}
	return outputConfigYAML(cmd.OutOrStdout(), cfgPath, masked, masterKeySet)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	cfgPath, err := configPath()
	if err != nil {
		return err
	}

	_, err = config.UpdateSettings(cfgPath, func(cfg *config.Config) error {
		return cfg.Set(key, value)
	})
	if err != nil {
		return shared.NewUsageError(fmt.Sprintf("cannot set %s", key), err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), map[string]any{
			"success": true,
			"key":     key,
			"value":   value,
			"path":    cfgPath,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key, cfgPath)
	return nil
}

// maskSensitiveConfig creates a copy of config with sensitive values masked
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Tokens.MasterKey = ""

	if len(cfg.Tracing.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Tracing.Headers))
		for k, v := range cfg.Tracing.Headers {
			headers[k] = maskSecret(v)
		}
		masked.Tracing.Headers = headers
	}

	return &masked
}

// maskSecret masks a secret for display
func maskSecret(key string) string {
	if key == "" {
		return ""
	}

	// If it's an environment variable reference, don't mask
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return key
	}

	// Show first 4 and last 4 characters
	if len(key) <= 8 {
		return "****"
	}

	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// configMap renders cfg through its YAML tags so JSON output uses the same
// key names as the config file.
func configMap(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return m, nil
}

func outputConfigJSON(w io.Writer, cfg *config.Config, masterKeySet bool) error {
	m, err := configMap(cfg)
	if err != nil {
		return err
	}
	if tokens, ok := m["tokens"].(map[string]any); ok {
		tokens["master_key_set"] = masterKeySet
	}
	return shared.EmitJSON(w, m)
}

func outputConfigYAML(w io.Writer, path string, cfg *config.Config, masterKeySet bool) error {
	fmt.Fprintf(w, "Configuration: %s\n", path)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if cfg.Tokens.Storage == config.StorageFile {
		state := "not set, tokens are stored unencrypted"
		if masterKeySet {
			state = "set"
		}
		fmt.Fprintf(w, "\nmaster key: %s\n", state)
	}
	return nil
}
