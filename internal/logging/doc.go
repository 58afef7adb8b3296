// Package logging assembles structured slog loggers and formatting helpers used
// across marquee batch jobs.
//
// It owns the configurable console/JSON handlers (with an optional JSON copy in
// the log directory), centralizes level plumbing, and exposes context-aware
// helpers so job code automatically tags log lines with run IDs, job names and
// event IDs. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
