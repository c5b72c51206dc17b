// Package config loads, normalizes, and validates reelcraft configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads `.env` files, and honours environment
// overrides such as REELCRAFT_API_BASE. The Config type centralizes every
// knob the CLI and the local bridge need: backend endpoints, retry policy,
// session storage, logging, and notifications.
//
// Always obtain settings through this package so downstream code receives
// trimmed URLs, expanded paths, and clear validation errors.
package config
