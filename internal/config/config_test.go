package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layerpaper.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[default]
path = "/tmp/wallpapers"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := cfg.Default
	if p.Path != "/tmp/wallpapers" {
		t.Errorf("Path = %q, want /tmp/wallpapers", p.Path)
	}
	if p.Mode != ModeFill {
		t.Errorf("Mode = %q, want fill", p.Mode)
	}
	if p.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", p.Duration)
	}
	if p.Transition != TransitionFade {
		t.Errorf("Transition = %q, want fade", p.Transition)
	}
	if p.TransitionDuration != 500*time.Millisecond {
		t.Errorf("TransitionDuration = %v, want 500ms", p.TransitionDuration)
	}
	if p.Easing != EasingEaseInOut {
		t.Errorf("Easing = %q, want ease-in-out", p.Easing)
	}
}

func TestLoadPerOutputInheritance(t *testing.T) {
	path := writeConfig(t, `
[default]
path = "/tmp/wallpapers"
mode = "center"
duration = "1m"

["eDP-1"]
mode = "tile"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := cfg.PolicyFor("eDP-1")
	if p.Mode != ModeTile {
		t.Errorf("eDP-1 Mode = %q, want tile", p.Mode)
	}
	// Unset fields inherit from the default section.
	if p.Path != "/tmp/wallpapers" {
		t.Errorf("eDP-1 Path = %q, want inherited /tmp/wallpapers", p.Path)
	}
	if p.Duration != time.Minute {
		t.Errorf("eDP-1 Duration = %v, want inherited 1m", p.Duration)
	}

	// An output without a section resolves to the default policy.
	if got := cfg.PolicyFor("HDMI-A-1"); got.Mode != ModeCenter {
		t.Errorf("fallback Mode = %q, want center", got.Mode)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{
			name: "unknown key",
			content: `
[default]
path = "/tmp/w"
wallpaper-dir = "/tmp/x"
`,
			wantField: "default.wallpaper-dir",
		},
		{
			name: "unknown key in output section",
			content: `
[default]
path = "/tmp/w"

["DP-3"]
shuffle = true
`,
			wantField: "DP-3.shuffle",
		},
		{
			name: "invalid mode",
			content: `
[default]
path = "/tmp/w"
mode = "zoom"
`,
			wantField: "default.mode",
		},
		{
			name: "invalid easing",
			content: `
[default]
path = "/tmp/w"
easing = "bounce"
`,
			wantField: "default.easing",
		},
		{
			name: "invalid transition",
			content: `
[default]
path = "/tmp/w"
transition = "wipe"
`,
			wantField: "default.transition",
		},
		{
			name: "invalid sorting",
			content: `
[default]
path = "/tmp/w"
sorting = "newest"
`,
			wantField: "default.sorting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want ParseError")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Load() error = %T, want *ParseError", err)
			}
			if perr.Field != tt.wantField {
				t.Errorf("ParseError.Field = %q, want %q", perr.Field, tt.wantField)
			}
		})
	}
}

func TestLoadToleratesDaemonWideKeys(t *testing.T) {
	// framerate_limit, debug and background live at the top level of the
	// same file and belong to the CLI layer, not to any output section.
	path := writeConfig(t, `
framerate_limit = 30
debug = true

[default]
path = "/tmp/w"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Default.Path != "/tmp/w" {
		t.Errorf("Default.Path = %q, want /tmp/w", cfg.Default.Path)
	}
	if len(cfg.Outputs) != 0 {
		t.Errorf("Outputs = %v, daemon-wide keys must not become output sections", cfg.Outputs)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[default\npath = ")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on malformed TOML")
	}
}

func TestStoreKeepsSnapshotOnFailedReload(t *testing.T) {
	path := writeConfig(t, `
[default]
path = "/tmp/first"
`)
	store := NewStore(path)
	if _, err := store.Load(); err != nil {
		t.Fatalf("initial Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("[default]\nbogus-key = 1\n"), 0644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("Load() succeeded on invalid config")
	} else if !strings.Contains(err.Error(), "bogus-key") {
		t.Errorf("error %q does not name the offending key", err)
	}

	active := store.Active()
	if active == nil {
		t.Fatal("Active() = nil after failed reload")
	}
	if active.Default.Path != "/tmp/first" {
		t.Errorf("Active().Default.Path = %q, want previous snapshot /tmp/first", active.Default.Path)
	}
}
