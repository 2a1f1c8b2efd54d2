package main

import (
	"context"
	"errors"
	"fmt"
	"io"
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

	"github.com/cloudstore/cloudstore/internal/client"
	"github.com/cloudstore/cloudstore/internal/client/config"
	"github.com/cloudstore/cloudstore/internal/utils"
	"github.com/cloudstore/cloudstore/internal/version"
)

// stderr log level; raised or lowered once the config is known
var logLevel = new(slog.LevelVar)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cloudstore",
		Short:         "CloudStore CLI",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "CloudStore config file")
	cmd.PersistentFlags().StringP("server", "s", "", "CloudStore server url")
	cmd.PersistentFlags().String("state", "", "Local state database")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newVerifyCmd(),
		newResetCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newLsCmd(),
		newMkdirCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newRmCmd(),
		newMvCmd(),
		newRestoreCmd(),
		newPurgeCmd(),
		newShareCmd(),
		newUnshareCmd(),
		newLinkCmd(),
		newActivityCmd(),
		newConfigPathCmd(),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	logFile, err := openLogFile(config.DefaultLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	setupLogger(os.Stderr, logFile)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "%s %s\n", red.Render("ERROR:"), err)
		}
		os.Exit(1)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// setupLogger sends warnings and up to the terminal and everything to the
// log file.
func setupLogger(term *os.File, file io.Writer) {
	logLevel.Set(slog.LevelWarn)

	termHandler := tint.NewHandler(term, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(term.Fd()),
	})
	fileHandler := slog.NewTextHandler(utils.NewLogInterceptor(file), &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(termHandler, fileHandler)))
}

// loadConfig merges, highest first: flags, CLOUDSTORE_* env (plus the web
// client's VITE_API_BASE_URL), the config file, defaults. A .env in the
// working directory is read into the environment first.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	for key, flag := range map[string]string{
		"server_url": "server",
		"state_path": "state",
		"log_level":  "log-level",
	} {
		if f := cmd.Flag(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("CLOUDSTORE")
	v.AutomaticEnv()
	if err := v.BindEnv("server_url", "CLOUDSTORE_SERVER_URL", "VITE_API_BASE_URL"); err != nil {
		return nil, err
	}

	v.SetDefault("server_url", config.DefaultServerURL)
	v.SetDefault("state_path", config.DefaultStatePath)
	v.SetDefault("log_level", config.DefaultLogLevel)

	return &config.Config{
		ServerURL: v.GetString("server_url"),
		StatePath: v.GetString("state_path"),
		LogLevel:  v.GetString("log_level"),
		Path:      configPath,
	}, nil
}

// withClient opens a session for one command and closes it afterwards.
// Failures the executor already showed to the user come back wrapped in
// reportedError so they are not printed twice.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logLevel.Set(min(cfg.SlogLevel(), slog.LevelWarn))
	if !strings.HasPrefix(cfg.ServerURL, "https://") && !utils.IsDevURL(cfg.ServerURL) {
		slog.Warn("server url is not https, credentials are sent in the clear", "server", cfg.ServerURL)
	}

	notifier := newTermNotifier(cmd.OutOrStdout(), cmd.ErrOrStderr())
	c, err := client.New(cfg, notifier)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := fn(cmd.Context(), c); err != nil {
		if notifier.Errors() > 0 {
			return &reportedError{err: err}
		}
		return err
	}
	return nil
}

// withSession is withClient for commands that need a signed-in user.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if err := c.EnsureSession(); err != nil {
			return fmt.Errorf("%w (run `cloudstore login`)", err)
		}
		return fn(ctx, c)
	})
}

type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
