// Package config loads engine settings.
//
// Values are layered: built-in defaults, then a YAML file, then GRAPHRAG_*
// environment variables. Command-line flags are applied last by the caller.
package config
