package sim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mdsim/internal/sim"
)

func TestSim(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sim Suite")
}

type countingBackend struct {
	steps int
}

func (b *countingBackend) RunPre(restart bool) error { return nil }

func (b *countingBackend) RunUntil(ctx context.Context, step int) error {
	b.steps = step
	return nil
}

func (b *countingBackend) Steps() int        { return b.steps }
func (b *countingBackend) SetSteps(step int) { b.steps = step }

func newSim() *sim.Simulation {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sim.New(&countingBackend{}, sim.WithLogger(log))
}

var _ = Describe("Simulation", func() {
	var s *sim.Simulation

	BeforeEach(func() {
		s = newSim()
	})

	Describe("observer registration", func() {
		It("returns a handle carrying name and role", func() {
			h := s.Add("probe", sim.Ordinary, sim.Every(10), sim.ObserverFunc(func(*sim.Simulation) error { return nil }))
			Expect(h.Name()).To(Equal("probe"))
			Expect(h.Role()).To(Equal(sim.Ordinary))
			Expect(h.Scheduler()).NotTo(BeNil())
		})

		It("tolerates removing a handle twice", func() {
			h := s.AddEvery("probe", 10, sim.ObserverFunc(func(*sim.Simulation) error { return nil }))
			s.Remove(h)
			Expect(func() { s.Remove(h) }).NotTo(Panic())
		})
	})

	Describe("running to a target", func() {
		It("stops exactly at the target step", func() {
			Expect(s.Run(context.Background(), 1000)).To(Succeed())
			Expect(s.Steps()).To(Equal(1000))
		})

		It("treats a wrapped end-of-run error as normal termination", func() {
			s.Add("early", sim.Targeter, sim.Every(10), sim.ObserverFunc(func(s *sim.Simulation) error {
				if s.Steps() >= 30 {
					return errors.Join(sim.ErrEndOfRun)
				}
				return nil
			}))
			Expect(s.Run(context.Background(), 1000)).To(Succeed())
			Expect(s.Steps()).To(Equal(30))
		})

		It("propagates observer failures", func() {
			boom := errors.New("boom")
			s.AddEvery("bad", 10, sim.ObserverFunc(func(s *sim.Simulation) error {
				if s.Steps() > 0 {
					return boom
				}
				return nil
			}))
			Expect(s.Run(context.Background(), 1000)).To(MatchError(boom))
		})
	})
})
