package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/config"
	"github.com/yuya-takeyama/strict-bunny-sync/internal/logging"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// app carries what every subcommand shares.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string
	logFile   string

	// openStore builds the store of a sync run.
	openStore func(ctx context.Context, cfg *config.Config, apiKey string) (storage.Store, error)
	// purgeBaseURL overrides the account API location.
	purgeBaseURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{
		v:         viper.New(),
		stdout:    stdout,
		stderr:    stderr,
		openStore: openStore,
	}
	a.v.SetEnvPrefix("STRICT_BUNNY_SYNC")
	a.v.AutomaticEnv()
	return a
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strict-bunny-sync",
		Short: "Mirror a local directory into a bunny.net storage zone",
		Long: `strict-bunny-sync makes a storage zone match a local directory exactly,
uploading only files whose SHA-256 checksum differs and deleting what is gone.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("api-key", "", "Storage zone password or account API key (env STRICT_BUNNY_SYNC_API_KEY)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "console", "Log format (console, json)")
	flags.StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this rotated file")
	_ = a.v.BindPFlag("api_key", flags.Lookup("api-key"))

	rootCmd.AddCommand(
		newSyncCommand(a),
		newPurgeURLCommand(a),
		newPurgeZoneCommand(a),
		newVersionCommand(a),
	)

	return rootCmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy)
}

func (a *app) apiKey() string {
	return a.v.GetString("api_key")
}

// newLogger builds the operational logger from the persistent flags,
// letting values from a config file fill in flags that were not set.
func (a *app) newLogger(cmd *cobra.Command, level, format, file string) *zap.Logger {
	cfg := logging.Config{Level: a.logLevel, Format: a.logFormat, File: a.logFile}
	flags := cmd.Flags()
	if !flags.Changed("log-level") && level != "" {
		cfg.Level = level
	}
	if !flags.Changed("log-format") && format != "" {
		cfg.Format = format
	}
	if !flags.Changed("log-file") && file != "" {
		cfg.File = file
	}
	return logging.New(cfg, a.stderr)
}
