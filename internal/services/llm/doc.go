// Package llm provides an OpenRouter-compatible chat client used for event
// classification and cross-source match arbitration.
//
// CompleteJSON sends system/user prompts and returns the raw JSON content;
// ClassifyEvent and ArbitrateMatch wrap it with the marquee prompts and decode
// the payloads. DecodeLLMJSON tolerates code fences and leading prose.
//
// The client retries HTTP 408/429/5xx, empty completions and network timeouts
// with exponential backoff honoring Retry-After. Errors carry the services
// markers ErrExternalService or ErrMalformedResponse so callers can fail closed.
package llm
