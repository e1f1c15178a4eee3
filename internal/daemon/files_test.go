package daemon

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.WEBP"))

	t.Run("flat", func(t *testing.T) {
		got, err := listImages(dir, false)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.jpg")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("listImages = %v, want %v", got, want)
		}
	})

	t.Run("recursive", func(t *testing.T) {
		got, err := listImages(dir, true)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{
			filepath.Join(dir, "a.png"),
			filepath.Join(dir, "b.jpg"),
			filepath.Join(dir, "sub", "c.WEBP"),
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("listImages = %v, want %v", got, want)
		}
	})

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(dir, "a.png")
		got, err := listImages(path, false)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, []string{path}) {
			t.Errorf("listImages = %v, want just %v", got, path)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := listImages(filepath.Join(dir, "nope"), false); err == nil {
			t.Error("expected an error for a missing path")
		}
	})
}
