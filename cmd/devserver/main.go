package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudstore/cloudstore/internal/devserver"
	"github.com/cloudstore/cloudstore/internal/version"
)

func main() {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "devserver",
		Short:   "In-memory CloudStore backend for local development",
		Version: version.Detailed(),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := devserver.DefaultConfig()
			if err := v.Unmarshal(cfg); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			srv, err := devserver.New(cfg)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	defaults := devserver.DefaultConfig()
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", defaults.Addr, "Address to bind the server")
	cmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	cmd.Flags().StringP("key", "k", "", "Path to the key file")
	cmd.Flags().String("public-url", "", "Base URL for public share links")
	cmd.Flags().String("rate-limit", defaults.RateLimit, "Per-IP rate limit, e.g. 200-S (empty disables)")
	cmd.Flags().Bool("skip-verification", false, "Let new accounts log in without a verification code")
	cmd.Flags().StringSlice("admin", nil, "Email allowed to read everyone's activity (repeatable)")
	cmd.Flags().String("seed", "", "YAML file of users and files to start with")
	cmd.Flags().Duration("access-token-expiry", defaults.AccessTokenExpiry, "Access token lifetime")

	return cmd
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) error {
	// a missing .env is fine
	_ = godotenv.Load()

	flags := map[string]string{
		"addr":                "bind",
		"cert_file":           "cert",
		"key_file":            "key",
		"public_url":          "public-url",
		"rate_limit":          "rate-limit",
		"skip_verification":   "skip-verification",
		"admins":              "admin",
		"access_token_expiry": "access-token-expiry",
		"seed_file":           "seed",
	}
	for key, flag := range flags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix("CLOUDSTORE_DEVSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// secrets come from the environment only
	_ = v.BindEnv("access_token_secret")
	_ = v.BindEnv("refresh_token_secret")

	return nil
}
