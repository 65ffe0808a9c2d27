// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry configures OpenTelemetry tracing for the client.
//
// [Init] installs a global tracer provider that batches spans to an
// OTLP/HTTP collector and the W3C trace-context propagator. The API
// client's otelhttp transport picks both up, so every backend call
// becomes a client span whose trace id travels in the traceparent
// header. Tracing is opt-in (api.telemetry in the config file); when
// it is off nothing here runs and the global no-op provider stays.
package telemetry
