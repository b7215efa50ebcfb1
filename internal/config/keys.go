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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type setter func(c *Config, value string) error

var setters = map[string]setter{
	"api_url": func(c *Config, v string) error {
		c.APIURL = v
		return nil
	},
	"timeout": durationSetter(func(c *Config) *time.Duration { return &c.Timeout }),
	"retries": func(c *Config, v string) error {
		if v == "" || v == "default" {
			c.Retries = nil
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Retries = &n
		return nil
	},
	"retry_delay":     durationSetter(func(c *Config) *time.Duration { return &c.RetryDelay }),
	"max_retry_delay": durationSetter(func(c *Config) *time.Duration { return &c.MaxRetryDelay }),
	"user_agent": func(c *Config, v string) error {
		c.UserAgent = v
		return nil
	},
	"rate_limit.requests_per_second": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.RateLimit.RequestsPerSecond = f
		return nil
	},
	"rate_limit.burst": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.RateLimit.Burst = n
		return nil
	},
	"tokens.storage": func(c *Config, v string) error {
		c.Tokens.Storage = strings.ToLower(v)
		return nil
	},
	"tokens.dir": func(c *Config, v string) error {
		c.Tokens.Dir = v
		return nil
	},
	"tokens.watch": boolSetter(func(c *Config) *bool { return &c.Tokens.Watch }),
	"log.level": func(c *Config, v string) error {
		c.Log.Level = strings.ToLower(v)
		return nil
	},
	"log.format": func(c *Config, v string) error {
		c.Log.Format = strings.ToLower(v)
		return nil
	},
	"tracing.enabled": boolSetter(func(c *Config) *bool { return &c.Tracing.Enabled }),
	"tracing.exporter": func(c *Config, v string) error {
		c.Tracing.Exporter = strings.ToLower(v)
		return nil
	},
	"tracing.endpoint": func(c *Config, v string) error {
		c.Tracing.Endpoint = v
		return nil
	},
	"tracing.insecure": boolSetter(func(c *Config) *bool { return &c.Tracing.Insecure }),
	"tracing.sample_rate": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Tracing.SampleRate = f
		return nil
	},
}

// Keys lists the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the dotted key. It does not validate the result.
func (c *Config) Set(key, value string) error {
	fn, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := fn(c, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

func durationSetter(field func(*Config) *time.Duration) setter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}
