// Package ingest resolves normalized source records onto canonical events.
//
// Each record is matched first by (source, source event id) and then by an
// identical normalized title at the same venue and source on the same
// venue-local calendar day. A hit is overwritten in full; a miss creates a
// scheduled event. Failures are collected per record and never abort the
// batch, so a second run over the same batch creates nothing.
package ingest
