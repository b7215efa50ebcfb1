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

/*
Package tracing provides correlation IDs and OpenTelemetry setup for
outbound API calls.

# Correlation IDs

Every logical request carries a correlation ID. EnsureContext reuses the
ID already on the context or creates one, so retries of the same request
share it:

	ctx, id := tracing.EnsureContext(ctx)
	req.Header.Set(tracing.HeaderCorrelationID, id.String())

The backend answers with X-Trace-ID and X-Request-ID headers, read with
ExtractFromResponse and attached to errors for support requests.

# Spans

Setup installs a global tracer provider exporting to stdout, OTLP/HTTP or
OTLP/gRPC:

	shutdown, err := tracing.Setup(ctx, tracing.Config{
	    Exporter:    tracing.ExporterOTLPHTTP,
	    Endpoint:    "localhost:4318",
	    ServiceName: "flowctl",
	    SampleRate:  0.1,
	})
	defer shutdown(ctx)

With no exporter the global no-op provider stays in place and spans cost
nothing. InjectHTTPHeaders adds W3C trace context to outbound requests so
backend spans join the client's trace.
*/
package tracing
