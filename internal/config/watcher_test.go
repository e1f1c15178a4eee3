package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layerpaper.toml")
	if err := os.WriteFile(path, []byte("[default]\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	w, err := newWatcher(path, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("newWatcher() error = %v", err)
	}
	defer w.Close()

	// An editor-style save burst: several writes in quick succession.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("[default]\npath = \"/tmp/a\"\n"), 0644); err != nil {
			t.Fatalf("writing config: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-w.C:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after config change")
	}

	// The burst must have collapsed into that single notification.
	select {
	case <-w.C:
		t.Fatal("burst produced a second notification")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherSeesRenameOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layerpaper.toml")
	if err := os.WriteFile(path, []byte("[default]\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	w, err := newWatcher(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("newWatcher() error = %v", err)
	}
	defer w.Close()

	// Write-then-rename, the way vim and friends save.
	tmp := filepath.Join(dir, ".layerpaper.toml.swp")
	if err := os.WriteFile(tmp, []byte("[default]\npath = \"/tmp/b\"\n"), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("renaming over config: %v", err)
	}

	select {
	case <-w.C:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after rename over config file")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layerpaper.toml")
	if err := os.WriteFile(path, []byte("[default]\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	w, err := newWatcher(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("newWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("writing sibling: %v", err)
	}

	select {
	case <-w.C:
		t.Fatal("notification for unrelated sibling file")
	case <-time.After(300 * time.Millisecond):
	}
}
