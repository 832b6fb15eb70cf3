// Package config loads, normalizes, and validates voice-memories settings.
//
// Values come from built-in defaults, an optional TOML file, a .env file, and
// finally process environment variables, in that order of precedence.
package config
