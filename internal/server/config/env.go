package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name, e.g. AUTH_GRPC_ADDR.
const EnvPrefix = "AUTH_"

// parseEnv overlays AUTH_* environment variables onto config. Unset
// variables leave fields untouched. A malformed value panics.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
