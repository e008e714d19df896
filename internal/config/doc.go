// Package config loads, normalizes, and validates nightscribe configuration
// from a TOML file with sensible defaults for every field.
package config
