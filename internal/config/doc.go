// Package config loads, normalizes, and validates riptide configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RIPTIDE_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: worker counts, path templates, post-processing toggles and service
// accounts are all discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
