// Package config loads typed configuration structs from environment
// variables.
//
// Each component of the scheduler defines its own Config struct with
// `env` and `envDefault` tags; the composition root aggregates them and
// loads everything once at startup:
//
//	type Config struct {
//	    CheckInterval time.Duration `env:"SCHEDULER_CHECK_INTERVAL" envDefault:"30s"`
//	    MaxRetries    int           `env:"SCHEDULER_MAX_RETRIES" envDefault:"3"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is applied before parsing, if one
// exists. Missing .env files are not an error.
package config
