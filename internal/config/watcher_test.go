package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prowire.yaml")
	writeConfig(t, path, "server:\n  port: 8184\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	writeConfig(t, path, "server:\n  port: 8185\n")

	select {
	case raw := <-w.Updates():
		assert.Equal(t, 8185, raw.GetInt("server.port", 0))
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
	}
}

func TestWatcherCoalescesPendingUpdates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prowire.yaml")
	writeConfig(t, path, "server:\n  port: 1\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()
	// Not started: queue updates directly so none are consumed in between.
	writeConfig(t, path, "server:\n  port: 2\n")
	w.Notify()
	writeConfig(t, path, "server:\n  port: 3\n")
	w.Notify()

	// Only the newest configuration survives.
	raw := <-w.Updates()
	assert.Equal(t, 3, raw.GetInt("server.port", 0))
	select {
	case <-w.Updates():
		t.Fatal("stale update was not coalesced")
	default:
	}
}

func TestWatcherIgnoresUnreadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prowire.yaml")
	writeConfig(t, path, "server:\n  port: 1\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	writeConfig(t, path, "server: [broken")
	w.Notify()

	select {
	case <-w.Updates():
		t.Fatal("unparseable configuration should not be delivered")
	default:
	}
}

func TestWatcherStopIsClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prowire.yaml")
	writeConfig(t, path, "a: 1\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Stop())
}
