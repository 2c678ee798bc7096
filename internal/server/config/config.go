// Package config handles configuration for the server component:
// defaults, an optional JSON file, GOPHAUTH_* environment variables and
// command-line flags, applied in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Config holds runtime settings for the gophauth server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the public gRPC endpoint.
//   - MetricsAddr: bind address for the Prometheus /metrics listener; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects in-memory storage.
//   - SecretKey: HMAC secret for signing access tokens (HS256). Required.
//   - Issuer / Audience: iss and aud claims of issued tokens.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - PasswordHasher / BcryptCost: password hashing algorithm and bcrypt cost.
//   - DefaultRole: role assigned on registration; empty assigns none.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrGRPC             string        `env:"GOPHAUTH_GRPC_ADDR"`
	MetricsAddr                  string        `env:"GOPHAUTH_METRICS_ADDR"`
	DatabaseDSN                  string        `env:"GOPHAUTH_DATABASE_DSN"`
	SecretKey                    string        `env:"GOPHAUTH_SECRET_KEY"`
	Issuer                       string        `env:"GOPHAUTH_ISSUER"`
	Audience                     string        `env:"GOPHAUTH_AUDIENCE"`
	AccessTokenValidityDuration  time.Duration `env:"GOPHAUTH_ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration time.Duration `env:"GOPHAUTH_REFRESH_TOKEN_TTL"`
	PasswordHasher               string        `env:"GOPHAUTH_PASSWORD_HASHER"`
	BcryptCost                   int           `env:"GOPHAUTH_BCRYPT_COST"`
	DefaultRole                  string        `env:"GOPHAUTH_DEFAULT_ROLE"`
	LogLevel                     string        `env:"GOPHAUTH_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults. SecretKey is
// intentionally left empty so a deployment has to provide one.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.DatabaseDSN = ""
	c.Issuer = "gophauth"
	c.Audience = "gophauth-clients"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 48 * time.Hour
	c.PasswordHasher = cryptox.HasherBcrypt
	c.BcryptCost = 12
	c.DefaultRole = "user"
	c.LogLevel = "info"
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: secret key is required", common.ErrConfiguration)
	}
	if c.AccessTokenValidityDuration <= 0 {
		return fmt.Errorf("%w: access token validity must be positive", common.ErrConfiguration)
	}
	if c.RefreshTokenValidityDuration <= 0 {
		return fmt.Errorf("%w: refresh token validity must be positive", common.ErrConfiguration)
	}
	if _, err := cryptox.NewPasswordHasher(c.PasswordHasher, c.BcryptCost); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if c.EndpointAddrGRPC == "" {
		return fmt.Errorf("%w: grpc address is required", common.ErrConfiguration)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then overlays the optional JSON
// file, the environment and finally command-line flags. The result is
// validated before it is returned.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
