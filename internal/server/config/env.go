package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays GOPHAUTH_* variables. Unset variables leave the current
// value untouched; durations use Go syntax ("15m", "48h").
func parseEnv(config *Config) error {
	return env.Parse(config)
}
