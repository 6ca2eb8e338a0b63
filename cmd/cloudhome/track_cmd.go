package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudhome/cloudhome/internal/config"
	"github.com/cloudhome/cloudhome/internal/daemon"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"github.com/spf13/cobra"
)

var ErrInvalidKey = errors.New("invalid key")

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <bucket> <key>...",
		Short: "Add keys to a bucket's manifest",
		Long: `Add keys to a bucket's manifest. Without a local manifest the bucket's copy is
fetched first; a new one is created only when the bucket has none.
Keys are relative to the manifest root and use forward slashes.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := args[0]
			if err := config.ValidateBucket(bucket); err != nil {
				return err
			}
			keys := make([]string, 0, len(args)-1)
			for _, raw := range args[1:] {
				key, err := normalizeKey(raw)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}

			a, err := loadApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			cmd.SilenceUsage = true

			lock := daemon.NewLock(a.cfg.CloudHome)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			path := a.cfg.ManifestPath(bucket)
			m, err := manifest.Load(path)
			if errors.Is(err, os.ErrNotExist) {
				// start from the bucket's copy so keys tracked on other machines survive
				rec, err := newReconciler(cmd.Context(), a.cfg, a.log.Logger)
				if err != nil {
					return err
				}
				target := reconcile.Target{Bucket: bucket, ManifestPath: path}
				if m, err = rec.Bootstrap(cmd.Context(), target); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			added := 0
			for _, key := range keys {
				if m.Track(key) {
					added++
					fmt.Fprintln(out, green.Render("+ "+key))
				} else {
					fmt.Fprintln(out, gray.Render("= "+key))
				}
			}

			if added == 0 && m.Exists() {
				return nil
			}
			if err := m.Save(); err != nil {
				return err
			}
			a.log.Info("manifest updated", "bucket", bucket, "path", path, "added", added)
			return nil
		},
	}
}

// normalizeKey turns a user supplied path into a manifest key.
func normalizeKey(raw string) (string, error) {
	key := filepath.ToSlash(filepath.Clean(strings.TrimSpace(raw)))
	if key == "." || !filepath.IsLocal(filepath.FromSlash(key)) || key == manifest.Basename {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	return key, nil
}
