package sim

import (
	"fmt"
	"math"
)

// Scheduler computes the next absolute step at which an observer must
// fire, given the current engine state.
type Scheduler interface {
	Next(s *Simulation) int
}

// never is the step count a scheduler returns when it will not fire.
const never = math.MaxInt

// Schedule is the standard scheduler. Exactly one of the fields should
// be set; a zero Schedule never fires.
type Schedule struct {
	// Interval fires every Interval steps.
	Interval int
	// Calls spreads a fixed number of notifications over the run's
	// target steps.
	Calls int
	// Steps fires at each listed absolute step.
	Steps []int
}

// Every returns a fixed-interval schedule. An interval of zero never
// fires; this is how the checkpoint schedule is disabled.
func Every(interval int) *Schedule { return &Schedule{Interval: interval} }

// ByCalls returns a schedule firing a fixed number of times over the
// run, spaced evenly up to the target step.
func ByCalls(calls int) *Schedule { return &Schedule{Calls: calls} }

// AtSteps returns a schedule firing at the given absolute steps, which
// must be sorted ascending.
func AtSteps(steps ...int) *Schedule { return &Schedule{Steps: steps} }

// Never returns a schedule that never fires.
func Never() *Schedule { return &Schedule{} }

func (sc *Schedule) Next(s *Simulation) int {
	switch {
	case sc == nil:
		return never
	case sc.Interval > 0:
		return (s.Steps()/sc.Interval + 1) * sc.Interval
	case sc.Calls > 0:
		interval := s.MaxSteps() / sc.Calls
		if interval < 1 {
			interval = 1
		}
		return (s.Steps()/interval + 1) * interval
	case len(sc.Steps) > 0:
		for _, step := range sc.Steps {
			if step > s.Steps() {
				return step
			}
		}
		return never
	default:
		return never
	}
}

func (sc *Schedule) String() string {
	switch {
	case sc == nil:
		return "never"
	case sc.Interval > 0:
		return fmt.Sprintf("interval=%d", sc.Interval)
	case sc.Calls > 0:
		return fmt.Sprintf("calls=%d", sc.Calls)
	case len(sc.Steps) > 0:
		return fmt.Sprintf("steps=%v", sc.Steps)
	default:
		return "never"
	}
}
