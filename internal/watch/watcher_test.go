package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudhome/cloudhome/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w := New([]string{dir}, logging.Discard())
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return w
}

func TestWatcher_WriteTriggersOnce(t *testing.T) {
	// tmpdir may sit behind a symlink on macOS
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	w := startWatcher(t, dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte{byte(i)}, 0o644))
	}

	select {
	case <-w.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger after write")
	}

	// the burst was coalesced
	select {
	case <-w.Triggers():
		t.Fatal("unexpected second trigger")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NestedDirectories(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "2024"), 0o755))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "2024", "report.md"), []byte("x"), 0o644))

	select {
	case <-w.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger for nested write")
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "/root/a.txt", want: false},
		{path: "/root/.bashrc", want: false},
		{path: "/root/b/.manifest.json.tmp-123", want: true},
		{path: "/root/docs/.a.txt.download-99", want: true},
		{path: "/root/.cloudhome.lock", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ignored(tt.path))
		})
	}
}
