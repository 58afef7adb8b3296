// Package matching links canonical events to their ticket-platform
// counterparts in the venue and date keyed ticket cache.
//
// The decision ladder runs in order: keep a prior decision whose record is
// unchanged or temporarily absent, auto-accept a top similarity of at least
// 0.85, otherwise ask the arbiter to pick from the ranked list. Anything the
// arbiter cannot answer cleanly is treated as no match.
package matching
