// Package telemetry provides observability for the autonomy control plane.
//
// Three subpackages cover the standard concerns:
//
//   - logging: structured logging built on log/slog with configurable
//     level, format, and source annotation
//   - metrics: Prometheus metrics for decisions, executions, the approval
//     queue, and the audit log
//   - tracing: OpenTelemetry distributed tracing with an OTLP gRPC
//     exporter, or a noop tracer when disabled
package telemetry
