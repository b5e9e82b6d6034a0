// Package config loads, normalizes, and validates clipminer configuration.
//
// Configuration comes from a TOML file (default ~/.config/clipminer/config.toml
// or ./clipminer.toml), with environment variable fallbacks for secrets and
// repository defaults for everything else. Validate runs before any word is
// processed so misconfiguration aborts the run immediately.
package config
