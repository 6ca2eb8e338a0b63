package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudhome/cloudhome/internal/config"
	"github.com/cloudhome/cloudhome/internal/daemon"
	"github.com/cloudhome/cloudhome/internal/logging"
	"github.com/cloudhome/cloudhome/internal/version"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     version.AppName,
		Short:   "Keep local folders and S3 buckets in sync",
		Version: version.Detailed(),
		Args:    cobra.NoArgs,
		RunE:    runDaemon,
	}

	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().DurationP("interval", "i", daemon.DefaultInterval, "Time between sync passes")
	rootCmd.Flags().BoolP("watch", "w", false, "Start a pass as soon as local files change")

	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "Config file")
	flags.StringP("cloudhome", "d", config.DefaultCloudHome, "Directory holding one folder per bucket")
	flags.StringSliceP("bucket", "b", nil, "Bucket to sync, repeatable")
	flags.StringP("profile", "p", "", "AWS shared config profile")
	flags.String("log-file", config.DefaultLogFilePath, "Log file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("endpoint", "", "S3 compatible endpoint URL")
	flags.String("region", "", "AWS region")

	rootCmd.AddCommand(
		newSyncCmd(),
		newTrackCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app is what every command needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *logging.Logger
}

// loadApp resolves the config for cmd and builds the logger. Console output goes to console.
func loadApp(cmd *cobra.Command, console io.Writer) (*app, error) {
	var path string
	if f := cmd.Flag("config"); f != nil && f.Changed {
		path = f.Value.String()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		LogFile: cfg.LogFile,
		Level:   cfg.LogLevel,
		Console: console,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger.Logger)

	logger.Debug("config loaded",
		"path", cfg.Path,
		"cloudhome", cfg.CloudHome,
		"buckets", cfg.BucketNames,
		"logFile", cfg.LogFile,
	)
	return &app{cfg: cfg, log: logger}, nil
}

func (a *app) Close() {
	if err := a.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

// requireBuckets narrows the configured buckets to names, or returns them all when names is empty.
func (a *app) requireBuckets(names []string) ([]string, error) {
	if len(names) == 0 {
		names = a.cfg.BucketNames
	}
	if len(names) == 0 {
		return nil, config.ErrNoBuckets
	}
	for _, b := range names {
		if err := config.ValidateBucket(b); err != nil {
			return nil, err
		}
	}
	return names, nil
}
