package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudstore/cloudstore/internal/utils"
)

const (
	DefaultAddr       = "127.0.0.1:8080"
	DefaultRateLimit  = "200-S"
	defaultCodeLength = 6
)

type Config struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// PublicURL prefixes public share links. Empty means the request host.
	PublicURL string `mapstructure:"public_url"`

	TokenIssuer        string        `mapstructure:"token_issuer"`
	AccessTokenSecret  string        `mapstructure:"access_token_secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"`
	RefreshTokenSecret string        `mapstructure:"refresh_token_secret"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`

	CodeLength int           `mapstructure:"code_length"`
	CodeExpiry time.Duration `mapstructure:"code_expiry"`

	// SkipVerification lets freshly registered users log in right away.
	SkipVerification bool `mapstructure:"skip_verification"`

	LinkExpiry time.Duration `mapstructure:"link_expiry"`

	// RateLimit is a ulule formatted rate ("200-S"). Empty disables it.
	RateLimit string `mapstructure:"rate_limit"`

	Admins []string `mapstructure:"admins"`

	// SeedFile is a YAML file of users and files loaded at startup.
	SeedFile string `mapstructure:"seed_file"`
}

// DefaultConfig is good enough for tests and local runs. The secrets are
// not secret.
func DefaultConfig() *Config {
	return &Config{
		Addr:               DefaultAddr,
		TokenIssuer:        "cloudstore-devserver",
		AccessTokenSecret:  "dev-access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenSecret: "dev-refresh-secret",
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		CodeLength:         defaultCodeLength,
		CodeExpiry:         10 * time.Minute,
		LinkExpiry:         7 * 24 * time.Hour,
		RateLimit:          DefaultRateLimit,
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.AccessTokenSecret == "" {
		return errors.New("devserver: `access_token_secret` is required")
	}
	if c.RefreshTokenSecret == "" {
		return errors.New("devserver: `refresh_token_secret` is required")
	}
	if c.CodeLength == 0 {
		c.CodeLength = defaultCodeLength
	}
	if c.CodeLength < 4 {
		return fmt.Errorf("devserver: `code_length` must be at least 4, got %d", c.CodeLength)
	}
	if c.PublicURL != "" {
		if err := utils.ValidateURL(c.PublicURL); err != nil {
			return fmt.Errorf("devserver: public url: %w", err)
		}
		c.PublicURL = utils.NormalizeURL(c.PublicURL)
	}
	for i, admin := range c.Admins {
		c.Admins[i] = utils.NormalizeEmail(admin)
	}
	return nil
}

// TLS reports whether the server terminates TLS itself.
func (c *Config) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) isAdmin(email string) bool {
	for _, admin := range c.Admins {
		if admin == email {
			return true
		}
	}
	return false
}
