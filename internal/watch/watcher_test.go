package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

const manifestJSON = `{
  "master_branch": {"name": "linux", "repourl": "https://git.example.com/linux.git", "branch": "master", "enabled": true},
  "topic_branches": [
    {"name": "feat-a", "repourl": "https://git.example.com/a.git", "branch": "dev", "enabled": true}
  ]
}
`

func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest_in.json")
	if err := os.WriteFile(path, []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, path)

	if err := os.WriteFile(path, []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-w.Changes:
		if c.Err != nil {
			t.Fatalf("reload error: %v", c.Err)
		}
		if len(c.Manifest.Topics) != 1 || c.Manifest.Topics[0].Name != "feat-a" {
			t.Errorf("reloaded manifest = %+v", c.Manifest)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest_in.json")
	if err := os.WriteFile(path, []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, path)

	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-w.Changes:
		t.Errorf("unexpected reload: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest_in.json")
	if err := os.WriteFile(path, []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-w.Changes:
		if !errors.Is(c.Err, manifest.ErrNoManifest) {
			t.Errorf("err = %v, want ErrNoManifest", c.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for removal")
	}
}
