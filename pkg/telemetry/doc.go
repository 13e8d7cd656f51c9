// Package telemetry provides the observability layer for the glaze engine:
// structured logging via zerolog, Prometheus metrics, OpenTelemetry tracing,
// and an in-process event bus.
//
// The four concerns are bundled behind the Telemetry type; the orchestrator
// owns one instance and hands the individual pieces to its components.
// Everything degrades to a no-op when disabled in configuration, so library
// embedders pay nothing for concerns they do not use.
package telemetry
