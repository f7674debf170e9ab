// Package config provides configuration loading for Hearth Core.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. Defaults are applied first, then file values, then
// HEARTH_* environment variables.
package config
