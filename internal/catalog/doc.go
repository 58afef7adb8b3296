// Package catalog owns the canonical event catalog: the record and event types
// shared by every pipeline stage and the SQLite store that persists venues,
// canonical events with their embedded match decisions, enrichment records,
// and the ticket-platform cache snapshot.
//
// Timestamps are stored as UTC RFC 3339 text at second precision so that
// lexical comparison in SQL matches chronological order.
package catalog
