package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("expected zero config (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linops", "config.json")

	want := &Config{
		DefaultDatacenter: "newark",
		DefaultPlan:       "2048",
		PollInterval:      "2s",
		WaitTimeout:       "10m",
		CacheDir:          "/var/cache/linops",
	}
	if err := want.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep")
	path := filepath.Join(dir, "config.json")

	cfg := &Config{DefaultDatacenter: "dallas"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json}"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	first := &Config{DefaultDatacenter: "newark"}
	if err := first.SaveTo(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := &Config{DefaultDatacenter: "london"}
	if err := second.SaveTo(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.DefaultDatacenter != "london" {
		t.Errorf("expected DefaultDatacenter %q, got %q", "london", got.DefaultDatacenter)
	}
}

func TestPathOverride(t *testing.T) {
	t.Cleanup(ResetPath)
	path := filepath.Join(t.TempDir(), "config.json")
	SetPath(path)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if got != path {
		t.Errorf("Path() = %q, want %q", got, path)
	}

	if err := (&Config{DefaultPlan: "4096"}).Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultPlan != "4096" {
		t.Errorf("expected DefaultPlan %q, got %q", "4096", cfg.DefaultPlan)
	}
}

func TestDurations(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{"unset uses fallback", "", 5 * time.Second, 5 * time.Second, false},
		{"parsed", "1m30s", time.Second, 90 * time.Second, false},
		{"whitespace", " 2s ", time.Second, 2 * time.Second, false},
		{"invalid", "soon", time.Second, 0, true},
		{"negative", "-1s", time.Second, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{PollInterval: tt.value, WaitTimeout: tt.value}

			for _, get := range []func(time.Duration) (time.Duration, error){cfg.PollIntervalOr, cfg.WaitTimeoutOr} {
				got, err := get(tt.fallback)
				if (err != nil) != tt.wantErr {
					t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
				}
				if got != tt.want {
					t.Errorf("got %s, want %s", got, tt.want)
				}
			}
		})
	}
}

func TestDurations_Zero(t *testing.T) {
	cfg := &Config{PollInterval: "0s", WaitTimeout: "0s"}

	if got, err := cfg.WaitTimeoutOr(time.Minute); err != nil || got != 0 {
		t.Errorf("WaitTimeoutOr = %s, %v; want 0 (wait until interrupted)", got, err)
	}
	if _, err := cfg.PollIntervalOr(time.Second); err == nil {
		t.Error("expected zero poll interval to be rejected")
	}
}
