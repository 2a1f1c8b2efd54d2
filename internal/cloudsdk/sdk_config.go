package cloudsdk

import (
	"time"

	"github.com/cloudstore/cloudstore/internal/utils"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 5 * time.Minute // generous for large uploads
)

type Config struct {
	BaseURL string     // required
	Tokens  TokenStore // required
	Timeout time.Duration
}

func (c *Config) Validate() error {
	c.BaseURL = utils.NormalizeURL(c.BaseURL)
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	if err := utils.ValidateURL(c.BaseURL); err != nil {
		return err
	}
	if c.Tokens == nil {
		return ErrNoTokenStore
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}
