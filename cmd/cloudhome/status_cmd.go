package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudhome/cloudhome/internal/local"
	"github.com/cloudhome/cloudhome/internal/manifest"
	"github.com/cloudhome/cloudhome/internal/reconcile"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type bucketStatus struct {
	Bucket   string       `yaml:"bucket"`
	Manifest string       `yaml:"manifest"`
	Root     string       `yaml:"root,omitempty"`
	Error    string       `yaml:"error,omitempty"`
	Items    []itemStatus `yaml:"items,omitempty"`
}

// itemStatus compares the cached remote state with the file on disk. Next is what a pass
// would do if the bucket has not changed since the cache was written.
type itemStatus struct {
	Key        string `yaml:"key"`
	Remote     string `yaml:"remote"`
	RemoteSize string `yaml:"remote_size,omitempty"`
	ETag       string `yaml:"etag,omitempty"`
	Local      string `yaml:"local"`
	LocalSize  string `yaml:"local_size,omitempty"`
	Next       string `yaml:"next"`
}

const (
	stateAbsent   = "absent"
	stateUnknown  = "unknown"
	stateRejected = "rejected"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [bucket]...",
		Short: "Show the cached state of every tracked key",
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

			inspector := local.NewInspector()
			report := make([]bucketStatus, 0, len(buckets))
			for _, b := range buckets {
				report = append(report, describeBucket(inspector, b, a.cfg.ManifestPath(b)))
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func describeBucket(inspector *local.Inspector, bucket, path string) bucketStatus {
	status := bucketStatus{Bucket: bucket, Manifest: path}

	m, err := manifest.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		status.Error = "no local manifest"
		return status
	} else if err != nil {
		status.Error = err.Error()
		return status
	}

	root, err := m.RootDir()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Root = root

	for _, key := range m.Keys() {
		status.Items = append(status.Items, describeItem(inspector, root, key, m.Items[key]))
	}
	return status
}

func describeItem(inspector *local.Inspector, root, key string, item *manifest.ItemState) itemStatus {
	status := itemStatus{Key: key, Remote: stateUnknown, Local: stateUnknown, Next: stateUnknown}

	remote := item.Remote
	switch {
	case remote == nil:
	case remote.Missing():
		status.Remote = stateAbsent
	default:
		status.Remote = formatTime(remote.Time())
		if remote.ContentLength != nil {
			status.RemoteSize = humanize.IBytes(uint64(*remote.ContentLength))
		}
		if remote.ETag != nil {
			status.ETag = *remote.ETag
		}
	}

	if key == manifest.Basename || !filepath.IsLocal(filepath.FromSlash(key)) {
		status.Next = stateRejected
		return status
	}

	state, err := inspector.Inspect(filepath.Join(root, filepath.FromSlash(key)))
	if err != nil {
		return status
	}
	if state.Present {
		status.Local = formatTime(state.LastModified)
		status.LocalSize = humanize.IBytes(uint64(state.Size))
	} else {
		status.Local = stateAbsent
	}

	if remote != nil {
		status.Next = string(reconcile.Decide(state, remote))
	}
	return status
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
