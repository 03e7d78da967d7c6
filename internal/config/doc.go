// Package config loads, normalizes, and validates Zeus configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ZEUS_PLATFORM_API_KEY. The Config type centralizes every knob the daemon and
// CLI need, from execution platform endpoints and autoscale bounds to
// consolidation thresholds and compliance rule defaults.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical compliance levels, and clear validation errors.
package config
