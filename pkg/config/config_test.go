package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	settings, err := store.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if settings.OutputDevice != "" {
		t.Errorf("OutputDevice = %q, want empty default", settings.OutputDevice)
	}
	if !settings.FollowSystemOutput {
		t.Error("FollowSystemOutput = false, want true default")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Settings{OutputDevice: "Built-in Output", FollowSystemOutput: false}
	if err := store.Save(dir, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() (second) error = %v", err)
	}
	got, err := reloaded.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("round-tripped settings = %+v, want %+v", got, want)
	}

	if _, err := filepath.Glob(filepath.Join(dir, "settings.yaml")); err != nil {
		t.Errorf("glob settings.yaml: %v", err)
	}
}
