package sim

import (
	"fmt"
	"time"
)

// reportHeader is emitted once, before stepping.
func (s *Simulation) reportHeader() {
	s.log.Info("mdsim simulation", "backend", fmt.Sprintf("%T", s.backend), "version", Version)
	if v, ok := s.backend.(Versioned); ok {
		s.log.Info("backend version", "version", v.Version())
	}
	s.log.Info("simulation starts",
		"on", time.Now().Format("2006-01-02 15:04"),
		"output", s.outputPath)
}

// reportObservers lists each registration with its cadence.
func (s *Simulation) reportObservers() {
	for _, h := range s.handles {
		if h.role == Targeter {
			s.log.Info("target", "name", h.name, "schedule", fmt.Sprint(h.sched))
		} else {
			s.log.Info("writer", "name", h.name, "schedule", fmt.Sprint(h.sched))
		}
	}
}

// reportEnd is emitted once, at normal termination.
func (s *Simulation) reportEnd() {
	s.log.Info("simulation ended", "on", time.Now().Format("2006-01-02 15:04"))
	s.log.Info("final steps", "steps", s.steps)
	s.log.Info("final rmsd", "rmsd", fmt.Sprintf("%.2f", s.RMSD()))
	s.log.Info("wall time", "seconds", fmt.Sprintf("%.1f", s.ElapsedWallTime().Seconds()))
	s.log.Info("average cost", "tsp", fmt.Sprintf("%.2e", s.WallTimePerStepParticle()))
}
