// Package jobs is the batch trigger layer: one entry point per job kind,
// each guarded by a per-job file lock so overlapping cron runs cannot
// interleave. Only failures that make a whole pass impossible are returned
// as errors; per-item problems are reported in the summaries.
package jobs
