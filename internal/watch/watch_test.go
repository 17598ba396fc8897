package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w
}

// next waits for the next change of kind to path.
func next(t *testing.T, w *Watcher, kind ChangeKind, path string) Change {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case change := <-w.Changes:
			if change.Kind == kind && change.Path == path {
				return change
			}
		case <-timeout:
			require.FailNowf(t, "timed out", "waiting for %s event on %s", kind, path)
		}
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.ts")
	require.NoError(t, os.WriteFile(file, []byte("run();\n"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(file, []byte("run(\n  1\n);\n"), 0o644))

	change := next(t, w, ChangeModified, file)
	assert.Equal(t, "typescript", change.Language)
}

func TestWatcher_DetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "old.js")
	require.NoError(t, os.WriteFile(file, []byte("run();\n"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.Remove(file))
	change := next(t, w, ChangeRemoved, file)
	assert.Equal(t, "removed", change.Kind.String())
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	select {
	case change := <-w.Changes:
		t.Errorf("unexpected change event: %+v", change)
	case <-time.After(300 * time.Millisecond):
		// Expected: no events for unsupported files.
	}
}

func TestWatcher_WatchesNestedAndNewDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))

	w := startWatcher(t, dir)

	nested := filepath.Join(dir, "src", "lib", "util.js")
	require.NoError(t, os.WriteFile(nested, []byte("run();\n"), 0o644))
	next(t, w, ChangeModified, nested)

	fresh := filepath.Join(dir, "pages")
	require.NoError(t, os.Mkdir(fresh, 0o755))
	// Give the loop a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)
	page := filepath.Join(fresh, "index.tsx")
	require.NoError(t, os.WriteFile(page, []byte("run();\n"), 0o644))
	next(t, w, ChangeModified, page)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "index.js"), []byte("run();\n"), 0o644))
	quiet := time.After(300 * time.Millisecond)
	for {
		select {
		case change := <-w.Changes:
			require.False(t, strings.Contains(change.Path, "node_modules"), "unexpected change inside node_modules: %+v", change)
		case <-quiet:
			return
		}
	}
}

func TestWatcher_StopWithUnreadChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	// More events than the channel buffers, none of them read.
	for i := range 200 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%03d.js", i)), []byte("run();\n"), 0o644))
	}
	require.Eventually(t, func() bool { return len(w.Changes) == cap(w.changes) }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a full Changes channel")
	}

	// Buffered changes stay readable, then the channel reports closed.
	for range w.Changes {
	}
}

func TestNew_MissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected Start to fail for a missing root")
	}
	w.watcher.Close()
}
