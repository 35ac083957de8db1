// Package config loads worker settings with viper: defaults, then an optional
// YAML file, then GOALFORGE_* environment variables. Load validates the result
// with struct tags and checks every cron expression before returning.
package config
