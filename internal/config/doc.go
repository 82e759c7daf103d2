// Package config loads, normalizes, and validates orbix configuration.
//
// It supplies repository defaults, expands user paths, reads TOML files and
// honours environment fallbacks for credentials (OPENROUTER_API_KEY,
// YOUTUBE_REFRESH_TOKEN and friends). Runtime-tunable pipeline knobs such as
// the shock threshold or the daily cap live in the settings table instead.
package config
