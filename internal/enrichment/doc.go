// Package enrichment attaches category, description and performer metadata
// to upcoming events.
//
// An LLM classification picks the category and performer and decides which
// secondary lookup is worth making: the music catalog for concerts, the
// knowledge graph for comedy, theater and film. When classification fails
// the engine falls back to a knowledge graph search on the raw title. Each
// source's output is stored as its own labeled sub-object on the event's
// enrichment record, and failed records are retried up to
// catalog.MaxEnrichmentAttempts times.
package enrichment
