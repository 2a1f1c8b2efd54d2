package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloudstore/cloudstore/internal/client/config"
	"github.com/cloudstore/cloudstore/internal/utils"
)

var home, _ = os.UserHomeDir()

// resolveConfigPath picks the config file, first match wins:
// the --config flag, CLOUDSTORE_CONFIG_PATH, an existing file in a known
// location, the default path.
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv("CLOUDSTORE_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "cloudstore", "config.json"),
	}

	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}
