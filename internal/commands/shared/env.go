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

package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tombee/flowctl/internal/config"
	flowlog "github.com/tombee/flowctl/internal/log"
	"github.com/tombee/flowctl/internal/tracing"
	"github.com/tombee/flowctl/pkg/api"
	"github.com/tombee/flowctl/pkg/auth"
	"github.com/tombee/flowctl/pkg/httpclient"
	"github.com/tombee/flowctl/pkg/platform"
)

// Env is everything a command needs to talk to the API.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Tokens   *auth.TokenStore
	Client   *api.Client
	Platform *platform.Platform
	Registry *prometheus.Registry

	shutdown   tracing.ShutdownFunc
	stopFollow context.CancelFunc
}

// LoadConfig loads configuration and applies the global flag overrides.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if u := GetAPIURL(); u != "" {
		cfg.APIURL = u
	}
	if GetVerbose() && cfg.Log.Level != "trace" {
		cfg.Log.Level = "debug"
	}
	if GetTrace() {
		cfg.Tracing.Enabled = true
		if cfg.Tracing.Exporter == config.ExporterNone {
			cfg.Tracing.Exporter = config.ExporterStdout
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewUsageError("invalid configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the CLI logger from cfg, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return flowlog.New(&flowlog.Config{
		Level:     cfg.Log.Level,
		Format:    flowlog.Format(cfg.Log.Format),
		Output:    w,
		AddSource: cfg.Log.AddSource,
	})
}

// RunWithEnv sets up an Env for cmd, runs fn and closes the Env.
func RunWithEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	env, err := NewEnv(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close(context.WithoutCancel(ctx))
	return fn(ctx, env)
}

// NewEnv builds an Env from cfg. Logs and console spans go to stderr.
func NewEnv(ctx context.Context, cfg *config.Config, stderr io.Writer) (*Env, error) {
	logger := NewLogger(cfg, stderr)
	env := &Env{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Exporter != config.ExporterNone {
		v, _, _ := GetVersion()
		shutdown, err := tracing.Setup(ctx, tracing.Config{
			Exporter:       cfg.Tracing.Exporter,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			Headers:        cfg.Tracing.Headers,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: v,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("set up tracing: %w", err)
		}
		env.shutdown = shutdown
	}

	storage, err := NewTokenStorage(cfg, logger)
	if err != nil {
		_ = env.shutdown(ctx)
		return nil, err
	}
	env.Tokens = auth.NewTokenStore(auth.WithStorage(storage), auth.WithLogger(logger))

	if cfg.Tokens.Watch {
		followCtx, cancel := context.WithCancel(context.Background())
		if err := env.Tokens.Follow(followCtx); err != nil {
			logger.Warn("token file watch unavailable", flowlog.Error(err))
			cancel()
		} else {
			env.stopFollow = cancel
		}
	}

	v, _, _ := GetVersion()
	hc, err := httpclient.New(httpclient.Config{
		UserAgent: userAgent(cfg, v),
		RateLimit: cfg.RateLimit.RequestsPerSecond,
		RateBurst: cfg.RateLimit.Burst,
		Logger:    flowlog.WithComponent(logger, "http"),
	})
	if err != nil {
		env.Close(ctx)
		return nil, fmt.Errorf("create http client: %w", err)
	}

	opts := []api.Option{
		api.WithHTTPClient(hc),
		api.WithTokenStore(env.Tokens),
		api.WithLogger(logger),
		api.WithMetrics(env.Registry),
		api.WithDefaultTimeout(cfg.Timeout),
		api.WithDefaultRetryDelay(cfg.RetryDelay),
		api.WithMaxRetryDelay(cfg.MaxRetryDelay),
	}
	if cfg.Retries != nil {
		opts = append(opts, api.WithDefaultRetries(*cfg.Retries))
	}

	client, err := api.New(cfg.APIURL, opts...)
	if err != nil {
		env.Close(ctx)
		return nil, NewUsageError("invalid API URL", err)
	}
	env.Client = client
	env.Platform = platform.New(client)
	return env, nil
}

// NewTokenStorage returns the storage backend named by cfg.Tokens.Storage.
// An unavailable keychain falls back to the file backend with a warning.
func NewTokenStorage(cfg *config.Config, logger *slog.Logger) (auth.Storage, error) {
	switch cfg.Tokens.Storage {
	case config.StorageMemory:
		return auth.NewMemoryStorage(), nil

	case config.StorageKeychain:
		kc := auth.NewKeychainStorage(cfg.Tokens.KeychainService)
		if kc.Available() {
			return kc, nil
		}
		logger.Warn("system keychain unavailable, storing tokens in a file instead")
		fallthrough

	default:
		dir, err := cfg.TokenDir()
		if err != nil {
			return nil, fmt.Errorf("resolve token directory: %w", err)
		}
		opts := []auth.FileOption{auth.WithFileLogger(logger)}
		if cfg.Tokens.MasterKey != "" {
			opts = append(opts, auth.WithMasterKey(cfg.Tokens.MasterKey))
		}
		fs, err := auth.NewFileStorage(dir, opts...)
		if err != nil {
			return nil, fmt.Errorf("open token storage: %w", err)
		}
		return fs, nil
	}
}

// Close stops the token watcher, flushes spans and, in verbose mode, logs
// the request metrics gathered during the command.
func (e *Env) Close(ctx context.Context) {
	if e.stopFollow != nil {
		e.stopFollow()
	}
	if GetVerbose() {
		e.logMetrics()
	}
	if err := e.shutdown(ctx); err != nil {
		e.Logger.Warn("failed to flush traces", flowlog.Error(err))
	}
}

func (e *Env) logMetrics() {
	families, err := e.Registry.Gather()
	if err != nil {
		e.Logger.Debug("failed to gather metrics", flowlog.Error(err))
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		e.Logger.Debug("metric", slog.String("name", mf.GetName()), slog.Float64("value", total))
	}
}

func userAgent(cfg *config.Config, version string) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return "flowctl/" + version
}
