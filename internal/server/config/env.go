package config

import "github.com/caarlos0/env/v6"

// parseEnv overlays values from environment variables onto the Config,
// using the env tags declared on the struct. Missing variables leave the
// current values untouched.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
