// Package config loads, normalizes, and validates marquee configuration.
//
// Configuration lives in TOML (default ~/.config/marquee/config.toml, or
// marquee.toml in the working directory). Credentials may instead come from
// the environment: MARQUEE_LLM_API_KEY, TICKETMASTER_API_KEY,
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and GOOGLE_KG_API_KEY.
//
// Each external integration is optional; the *Enabled helpers report whether
// enough credentials are present for the batch jobs to construct its client.
package config
