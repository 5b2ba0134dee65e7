// Package config holds hostcrawl's runtime configuration: the Config struct
// populated from CLI flags, its defaults and validation, and the optional
// YAML file with per-site overrides.
package config
