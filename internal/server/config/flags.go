package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

var knownFlags = []string{"-a", "-m", "-d", "-s", "-i", "-aud", "-t", "-r", "-hasher", "-cost", "-role", "-l"}

// parseFlags overlays command-line flags.
//
// Supported flags:
//
//	-a string      gRPC bind address (e.g. ":50051")
//	-m string      metrics bind address, empty disables
//	-d string      PostgreSQL DSN, empty selects in-memory storage
//	-s string      HMAC secret key
//	-i string      token issuer
//	-aud string    token audience
//	-t float       access token validity, minutes (fractions allowed)
//	-r float       refresh token validity, minutes (fractions allowed)
//	-hasher string bcrypt or argon2id
//	-cost int      bcrypt cost
//	-role string   default role assigned on registration
//	-l string      log level
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "aud", config.Audience, "token audience")

	accessMinutes := fs.Float64("t", config.AccessTokenValidityDuration.Minutes(), "access token validity (in minutes)")
	refreshMinutes := fs.Float64("r", config.RefreshTokenValidityDuration.Minutes(), "refresh token validity (in minutes)")

	fs.StringVar(&config.PasswordHasher, "hasher", config.PasswordHasher, "password hasher (bcrypt|argon2id)")
	fs.IntVar(&config.BcryptCost, "cost", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.DefaultRole, "role", config.DefaultRole, "default role")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	// Only touch durations that were given, so float rounding never
	// disturbs a value that came from JSON or the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = timex.Minutes(*accessMinutes)
		case "r":
			config.RefreshTokenValidityDuration = timex.Minutes(*refreshMinutes)
		}
	})
	return nil
}
