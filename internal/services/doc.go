// Package services defines shared utilities consumed by the batch jobs and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, job names, and event IDs for logging
//     and tracing.
//   - Structured error markers plus the Wrap helper so per-item failures can be
//     classified with errors.Is (missing reference, external outage, malformed
//     response, persistence conflict).
//
// External clients live in subpackages (llm, ticketmaster, spotify, kgsearch,
// pacer).
package services
