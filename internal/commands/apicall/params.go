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

package apicall

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tombee/flowctl/pkg/api"
)

// paramsValue collects repeated --param key=value flags. A key given more
// than once becomes a multi-valued query parameter.
type paramsValue struct {
	keys   []string
	values map[string][]string
}

var _ pflag.Value = (*paramsValue)(nil)

func newParamsValue() *paramsValue {
	return &paramsValue{values: make(map[string][]string)}
}

func (p *paramsValue) String() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		for _, v := range p.values[k] {
			pairs = append(pairs, k+"="+v)
		}
	}
	return "[" + strings.Join(pairs, ",") + "]"
}

func (p *paramsValue) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	if _, seen := p.values[key]; !seen {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
	return nil
}

func (p *paramsValue) Type() string { return "key=value" }

// Params converts the collected flags for the API client.
func (p *paramsValue) Params() api.Params {
	if len(p.keys) == 0 {
		return nil
	}
	params := make(api.Params, len(p.keys))
	for _, k := range p.keys {
		vs := p.values[k]
		if len(vs) == 1 {
			params[k] = vs[0]
			continue
		}
		params[k] = vs
	}
	return params
}
