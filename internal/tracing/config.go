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

package tracing

import sdktrace "go.opentelemetry.io/otel/sdk/trace"

// Exporter names accepted by Config.Exporter.
const (
	ExporterNone     = ""
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds tracing configuration.
type Config struct {
	// Exporter selects where spans go: "", "stdout", "otlp-http" or "otlp-grpc".
	// An empty exporter leaves the global no-op tracer provider in place.
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector address (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for OTLP exporters (development only).
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every OTLP export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// SampleRate is the fraction of new traces recorded. Values outside
	// (0, 1) record everything. Child spans follow their parent.
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// Enabled reports whether an exporter is configured.
func (c Config) Enabled() bool {
	return c.Exporter != ExporterNone
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRate > 0 && c.SampleRate < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRate))
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}
