// Package tracing wraps OpenTelemetry spans used by the engine and the REST
// layer. Until Init or InitWithExporter is called spans are no-op.
package tracing
