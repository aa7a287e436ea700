package observers

import (
	"fmt"
	"time"

	"github.com/san-kum/mdsim/internal/sim"
)

// Speedometer reports the speed of the simulation and the estimated
// time to reach the target step. It is a sim.Meter: the engine
// reinitializes it at the start of every run and it is the only
// ordinary observer notified when resuming.
type Speedometer struct {
	init     bool
	lastTime time.Time
	lastStep int
}

func NewSpeedometer() *Speedometer { return &Speedometer{} }

func (sp *Speedometer) ResetMeter() { sp.init = false }

func (sp *Speedometer) Observe(s *sim.Simulation) error {
	now := time.Now()
	if !sp.init {
		sp.lastTime = now
		sp.lastStep = s.Steps()
		sp.init = true
		return nil
	}
	target := s.MaxSteps()
	elapsed := now.Sub(sp.lastTime).Seconds()
	if target > 0 && elapsed > 0 {
		speed := float64(s.Steps()-sp.lastStep) / elapsed
		frac := float64(s.Steps()) / float64(target)
		eta := now
		if speed > 0 {
			eta = now.Add(time.Duration(float64(target-s.Steps()) / speed * float64(time.Second)))
		}
		s.Logger().Info("progress",
			"percent", int(frac*100),
			"step", s.Steps(),
			"target", target,
			"eta", eta.Format("2006-01-02 15:04"),
			"rate", fmt.Sprintf("%.2e", speed),
			"tsp", fmt.Sprintf("%.2e", s.WallTimePerStepParticle()))
	}
	sp.lastTime = now
	sp.lastStep = s.Steps()
	return nil
}
