// Package config loads, normalizes, and validates the TOML configuration shared by
// the cubbyd worker and the cubby CLI.
//
// Values are resolved in three layers: repository defaults, the config file, then
// environment overrides read with envconfig. Paths are expanded (including "~") before
// validation so downstream packages can use them directly.
package config
