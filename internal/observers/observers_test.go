package observers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/mdsim/internal/backend"
	"github.com/san-kum/mdsim/internal/observers"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/system"
)

func newLJSim(t *testing.T, out string) *sim.Simulation {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	sys := system.NewLattice(27, 0.8, 1.0, rng)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sim.New(backend.NewVerlet(sys, 0.002),
		sim.WithOutputPath(out),
		sim.WithLogger(log),
	)
}

func TestTargetRMSDEndsRunEarly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.xyz")
	s := newLJSim(t, out)
	s.Add("target-rmsd", sim.Targeter, sim.Every(10), observers.TargetRMSD(1e-9))

	if err := s.Run(context.Background(), 100000); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Steps() >= 100000 {
		t.Errorf("Steps() = %d, want early termination", s.Steps())
	}
	if s.RMSD() < 1e-9 {
		t.Errorf("RMSD() = %g, want >= target", s.RMSD())
	}
}

func TestTargetWallTimePropagatesFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.xyz")
	s := newLJSim(t, out)
	s.Add("target-walltime", sim.Targeter, sim.Every(1), observers.TargetWallTime(time.Nanosecond))

	err := s.Run(context.Background(), 1000)
	if !errors.Is(err, sim.ErrWallTimeLimit) {
		t.Fatalf("Run error = %v, want ErrWallTimeLimit", err)
	}
}

func TestUserStopEndsRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "run.xyz")
	if err := os.WriteFile(filepath.Join(dir, "STOP"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := newLJSim(t, out)
	s.AddEvery("user-stop", 1, observers.UserStop())

	if err := s.Run(context.Background(), 100000); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Steps() >= 100000 {
		t.Errorf("Steps() = %d, want early termination on STOP file", s.Steps())
	}
}

func TestThermoWriter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.xyz")
	s := newLJSim(t, out)
	s.AddEvery("write-thermo", 5, &observers.ThermoWriter{})

	if err := s.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(out + ".thermo")
	if err != nil {
		t.Fatalf("thermo file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if !strings.HasPrefix(lines[0], "# columns:") {
		t.Errorf("first line = %q, want header", lines[0])
	}
	// Header plus rows at 0, 5, 10, 15, 20.
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want 6:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[1], "0 ") {
		t.Errorf("first row = %q, want step 0", lines[1])
	}
	if !strings.HasPrefix(lines[2], "5 ") {
		t.Errorf("second row = %q, want step 5", lines[2])
	}
}

func TestTrajectoryWriterAndClear(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "run.xyz")
	// A stale trajectory from a previous run at the same path.
	if err := os.WriteFile(out, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newLJSim(t, out)
	s.AddEvery("write-trajectory", 10, &observers.TrajectoryWriter{})

	if err := s.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("trajectory file: %v", err)
	}
	if strings.Contains(string(data), "stale") {
		t.Error("stale output not cleared on a fresh run")
	}
	// Frames at 0, 10, 20.
	if got := strings.Count(string(data), "step:"); got != 3 {
		t.Errorf("frames = %d, want 3", got)
	}
}

func TestColumnsWriter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.xyz")
	s := newLJSim(t, out)
	s.AddEvery("write-temperature", 10, &observers.ColumnsWriter{
		Tag: "temp",
		Columns: []observers.Column{
			{Label: "steps", Value: func(s *sim.Simulation) float64 { return float64(s.Steps()) }},
			{Label: "temperature", Value: func(s *sim.Simulation) float64 { return s.System().Temperature() }},
		},
	})

	if err := s.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(out + ".temp")
	if err != nil {
		t.Fatalf("columns file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "# columns: steps temperature" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus rows at 10 and 20:\n%s", len(lines), data)
	}
}

func TestSpeedometerRuns(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.xyz")
	s := newLJSim(t, out)
	s.AddEvery("speedometer", 5, observers.NewSpeedometer())

	if err := s.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
