package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloudhome/cloudhome/internal/daemon"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [bucket]...",
		Short: "Run a single sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			buckets, err := a.requireBuckets(args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			lock := daemon.NewLock(a.cfg.CloudHome)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			rec, err := newReconciler(cmd.Context(), a.cfg, a.log.Logger)
			if err != nil {
				return err
			}

			stats, err := rec.RunPass(cmd.Context(), targets(a.cfg, buckets))
			if stats != nil {
				printSummary(cmd.OutOrStdout(), stats)
			}
			return err
		},
	}
}

func printSummary(w io.Writer, stats *reconcile.PassStats) {
	counts := []string{
		fmt.Sprintf("%d keys", stats.Keys),
		fmt.Sprintf("%d downloaded", stats.Downloads),
		fmt.Sprintf("%d uploaded", stats.Uploads),
		fmt.Sprintf("%d unchanged", stats.Skipped+stats.NoOps),
	}
	line := strings.Join(counts, ", ")
	if stats.Transfers() > 0 {
		line = green.Render(line)
	}

	var problems []string
	if stats.Conflicts > 0 {
		problems = append(problems, fmt.Sprintf("%d conflicts", stats.Conflicts))
	}
	if stats.RemoteErrors > 0 {
		problems = append(problems, fmt.Sprintf("%d unreachable", stats.RemoteErrors))
	}
	if stats.Failures > 0 {
		problems = append(problems, fmt.Sprintf("%d failed", stats.Failures))
	}
	if len(problems) > 0 {
		line += ", " + red.Render(strings.Join(problems, ", "))
	}

	fmt.Fprintf(w, "%s %s\n", gray.Render(fmt.Sprintf("[%d manifests]", stats.Manifests)), line)
}
