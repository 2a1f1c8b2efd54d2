package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/cloudstore/cloudstore/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDir        = filepath.Join(home, ".cloudstore")
	DefaultConfigPath = filepath.Join(DefaultDir, "config.json")
	DefaultStatePath  = filepath.Join(DefaultDir, "state.db")
	DefaultLogPath    = filepath.Join(DefaultDir, "logs", "client.log")
	DefaultServerURL  = "http://localhost:8080"
	DefaultLogLevel   = "info"
)

var (
	ErrNoServerURL = errors.New("config: server url is required")
	ErrNoPath      = errors.New("config: path is required")
)

type Config struct {
	ServerURL string `json:"server_url"`
	StatePath string `json:"state_path"`
	LogLevel  string `json:"log_level,omitempty"`
	Path      string `json:"-"`
}

// Validate normalizes paths and urls in place.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	c.ServerURL = utils.NormalizeURL(c.ServerURL)
	if err := utils.ValidateURL(c.ServerURL); err != nil {
		return fmt.Errorf("config: server url: %w", err)
	}

	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
	if c.StatePath != ":memory:" {
		p, err := utils.ResolvePath(c.StatePath)
		if err != nil {
			return fmt.Errorf("config: state path: %w", err)
		}
		c.StatePath = p
	}

	if c.Path != "" {
		p, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
		c.Path = p
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}

	return nil
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Save writes the config to c.Path. Concurrent writers are serialized with
// a lock file next to it.
func (c *Config) Save() error {
	if c.Path == "" {
		return ErrNoPath
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	lock := flock.New(c.Path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("config: lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.Path)
}

// LoadFromFile reads a config written by Save.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path

	return &cfg, nil
}
