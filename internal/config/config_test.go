package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `backend: dryrun
steps: 500
checkpoint_interval: 100
output_path: /tmp/run.xyz
target_rmsd: 2.5
wall_time_limit: 30m
system:
  particles: 64
  temperature: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "dryrun" {
		t.Errorf("Backend = %q, want dryrun", cfg.Backend)
	}
	if cfg.Steps != 500 {
		t.Errorf("Steps = %d, want 500", cfg.Steps)
	}
	if cfg.CheckpointInterval != 100 {
		t.Errorf("CheckpointInterval = %d, want 100", cfg.CheckpointInterval)
	}
	if cfg.System.Particles != 64 {
		t.Errorf("System.Particles = %d, want 64", cfg.System.Particles)
	}
	if cfg.System.Temperature != 1.5 {
		t.Errorf("System.Temperature = %g, want 1.5", cfg.System.Temperature)
	}
	// Fields absent from the file keep their defaults.
	if cfg.System.Density != DefaultDensity {
		t.Errorf("System.Density = %g, want default %g", cfg.System.Density, DefaultDensity)
	}
	if cfg.System.Dt != DefaultDt {
		t.Errorf("System.Dt = %g, want default %g", cfg.System.Dt, DefaultDt)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load should fail on a missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Backend = "lj"
	cfg.Steps = 12345
	cfg.Restart = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Steps != 12345 || loaded.Backend != "lj" || !loaded.Restart {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestWallTime(t *testing.T) {
	cfg := Default()
	if d, err := cfg.WallTime(); err != nil || d != 0 {
		t.Errorf("WallTime() = %v, %v; want 0, nil", d, err)
	}

	cfg.WallTimeLimit = "45m"
	d, err := cfg.WallTime()
	if err != nil {
		t.Fatalf("WallTime: %v", err)
	}
	if d != 45*time.Minute {
		t.Errorf("WallTime() = %v, want 45m", d)
	}

	cfg.WallTimeLimit = "bogus"
	if _, err := cfg.WallTime(); err == nil {
		t.Fatal("WallTime should fail on a bad duration")
	}
}
