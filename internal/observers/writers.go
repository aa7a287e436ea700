// Package observers provides the standard callbacks registered with a
// simulation: writers dumping state to disk on a schedule, targeters
// ending the run once a condition holds, and a speedometer reporting
// progress.
package observers

import (
	"fmt"
	"os"

	"github.com/san-kum/mdsim/internal/sim"
)

// TrajectoryWriter appends the current configuration to the backend
// trajectory. Backends without a trajectory or a system are skipped.
type TrajectoryWriter struct{}

func (w *TrajectoryWriter) Observe(s *sim.Simulation) error {
	tr := s.Trajectory()
	sys := s.System()
	if tr == nil || sys == nil {
		return nil
	}
	return tr.Write(sys, s.Steps())
}

func (w *TrajectoryWriter) Clear(s *sim.Simulation) error {
	if tr := s.Trajectory(); tr != nil {
		return tr.Clear()
	}
	return nil
}

// ThermoWriter appends basic thermodynamic data to a .thermo file next
// to the output path.
type ThermoWriter struct{}

func (w *ThermoWriter) path(s *sim.Simulation) string {
	if s.OutputPath() == "" {
		return ""
	}
	return s.OutputPath() + ".thermo"
}

func (w *ThermoWriter) Observe(s *sim.Simulation) error {
	path := w.path(s)
	sys := s.System()
	if path == "" || sys == nil {
		return nil
	}
	if s.Steps() == 0 {
		header := "# columns: steps, temperature, potential energy, kinetic energy, total energy, rmsd\n"
		if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d %g %g %g %g %g\n", s.Steps(),
		sys.Temperature(),
		sys.PotentialEnergyPerParticle(),
		sys.KineticEnergyPerParticle(),
		sys.TotalEnergyPerParticle(),
		s.RMSD())
	return err
}

func (w *ThermoWriter) Clear(s *sim.Simulation) error {
	path := w.path(s)
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Column extracts one value for a ColumnsWriter row.
type Column struct {
	Label string
	Value func(s *sim.Simulation) float64
}

// ColumnsWriter writes arbitrary simulation properties to a tagged
// file derived from the output path.
type ColumnsWriter struct {
	// Tag is appended to the output path to form the file name.
	Tag     string
	Columns []Column
}

func (w *ColumnsWriter) path(s *sim.Simulation) string {
	if s.OutputPath() == "" {
		return ""
	}
	return s.OutputPath() + "." + w.Tag
}

func (w *ColumnsWriter) Observe(s *sim.Simulation) error {
	path := w.path(s)
	if path == "" {
		return nil
	}
	if s.Steps() == 0 {
		header := "# columns:"
		for _, c := range w.Columns {
			header += " " + c.Label
		}
		return os.WriteFile(path, []byte(header+"\n"), 0o644)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line := ""
	for i, c := range w.Columns {
		if i > 0 {
			line += " "
		}
		line += fmt.Sprintf("%g", c.Value(s))
	}
	_, err = fmt.Fprintln(f, line)
	return err
}

func (w *ColumnsWriter) Clear(s *sim.Simulation) error {
	path := w.path(s)
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
