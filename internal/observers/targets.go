package observers

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/mdsim/internal/sim"
)

// TargetRMSD ends the run once the backend displacement metric reaches
// the given value.
func TargetRMSD(value float64) sim.Observer {
	return sim.ObserverFunc(func(s *sim.Simulation) error {
		rmsd := s.RMSD()
		if value > 0 {
			s.Logger().Debug("target rmsd", "now", rmsd, "target", value)
		}
		if rmsd >= value {
			return fmt.Errorf("reached target rmsd %g: %w", value, sim.ErrEndOfRun)
		}
		return nil
	})
}

// TargetWallTime fails the run once the elapsed wall time exceeds the
// limit. The distinct ErrWallTimeLimit propagates to the caller, which
// is what self-restarting jobs in a queueing system want.
func TargetWallTime(limit time.Duration) sim.Observer {
	return sim.ObserverFunc(func(s *sim.Simulation) error {
		elapsed := s.ElapsedWallTime()
		if elapsed > limit {
			return fmt.Errorf("elapsed %s: %w", elapsed, sim.ErrWallTimeLimit)
		}
		s.Logger().Debug("wall time", "elapsed", elapsed, "remaining", limit-elapsed)
		return nil
	})
}

// UserStop ends the run smoothly when a STOP file appears in the
// output directory. The file is not deleted, so cooperating processes
// all get to see it.
func UserStop() sim.Observer {
	return sim.ObserverFunc(func(s *sim.Simulation) error {
		if s.OutputPath() == "" {
			return nil
		}
		stop := filepath.Join(filepath.Dir(s.OutputPath()), "STOP")
		if _, err := os.Stat(stop); err == nil {
			return fmt.Errorf("user stopped the simulation: %w", sim.ErrEndOfRun)
		}
		return nil
	})
}
