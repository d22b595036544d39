// Package config loads, normalizes, and validates subforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file that sits beside the
// configuration, and honours the GEMINI_API_KEY environment fallback. The
// Config type centralizes every knob the daemon and CLI need, so data,
// export, and log directories plus Gemini credentials are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
