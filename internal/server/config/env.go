package config

import (
	"github.com/caarlos0/env/v11"
)

// envPrefix namespaces every variable read by parseEnv.
const envPrefix = "TASKCAMP_"

// parseEnv overlays TASKCAMP_* environment variables on config. Unset
// variables leave the current value untouched. Malformed values panic,
// the same as malformed flags and JSON.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		panic(err)
	}
}
