// Package telemetry wires optional OpenTelemetry tracing for batch jobs.
package telemetry
