package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Brush.Radius = 7
	cfg.Propagation.MinArea = 35
	cfg.Measurement.Delta = 0.25
	cfg.Segments = map[int32]string{1: "Tumor", 4: "Edema"}
	cfg.LockedSegments = []int32{4}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("Round trip differs:\nsaved  %+v\nloaded %+v", cfg, loaded)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("brush:\n  radius: 3\nlockedSegments: [2]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Brush.Radius != 3 {
		t.Errorf("Expected radius 3, got %d", cfg.Brush.Radius)
	}
	if cfg.Refine.MaxIterations != 1000 || cfg.Propagation.MinArea != 20 {
		t.Errorf("Expected untouched sections to keep defaults, got %+v", cfg)
	}

	opts := cfg.EngineOptions()
	if !reflect.DeepEqual(opts.Locked, []int32{2}) {
		t.Errorf("Expected locked segments [2], got %v", opts.Locked)
	}
	if opts.Delta != 0.1 || opts.MinArea != 20 {
		t.Errorf("Unexpected engine options %+v", opts)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("brush:\n  radius: 0\nmeasurement:\n  delta: -1\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected invalid values to be rejected")
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config is invalid: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file was not written: %v", err)
	}
}
