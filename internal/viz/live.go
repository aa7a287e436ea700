// Package viz renders a live terminal view of a running simulation.
package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mdsim/internal/sim"
)

const historyCapacity = 600

// Snapshot stores thermodynamic state at one observation.
type Snapshot struct {
	Step        int
	Target      int
	Temperature float64
	Epot        float64
	Ekin        float64
	Etot        float64
	RMSD        float64
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// Probe is an observer that feeds snapshots to the live view. Sends
// never block, a slow terminal just drops frames.
type Probe struct {
	ch chan Snapshot
}

func NewProbe() *Probe {
	return &Probe{ch: make(chan Snapshot, 64)}
}

func (p *Probe) Observe(s *sim.Simulation) error {
	snap := Snapshot{Step: s.Steps(), Target: s.MaxSteps(), RMSD: s.RMSD()}
	if sys := s.System(); sys != nil {
		snap.Temperature = sys.Temperature()
		snap.Epot = sys.PotentialEnergyPerParticle()
		snap.Ekin = sys.KineticEnergyPerParticle()
		snap.Etot = sys.TotalEnergyPerParticle()
	}
	select {
	case p.ch <- snap:
	default:
	}
	return nil
}

// Close signals the view that the run is over.
func (p *Probe) Close() { close(p.ch) }

type TickMsg time.Time

// Model is the bubbletea model showing run progress and an energy
// trace.
type Model struct {
	probe     *Probe
	name      string
	last      Snapshot
	etotTrace []float64
	rmsdTrace []float64
	done      bool
	started   time.Time
}

func NewModel(probe *Probe, name string) Model {
	return Model{
		probe:     probe,
		name:      name,
		etotTrace: make([]float64, 0, historyCapacity),
		rmsdTrace: make([]float64, 0, historyCapacity),
		started:   time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case TickMsg:
		m.drain()
		if m.done {
			return m, nil
		}
		return m, tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

// drain pulls all pending snapshots off the probe channel.
func (m *Model) drain() {
	for {
		select {
		case snap, ok := <-m.probe.ch:
			if !ok {
				m.done = true
				return
			}
			m.last = snap
			m.etotTrace = append(m.etotTrace, snap.Etot)
			if len(m.etotTrace) > historyCapacity {
				m.etotTrace = m.etotTrace[1:]
			}
			m.rmsdTrace = append(m.rmsdTrace, snap.RMSD)
			if len(m.rmsdTrace) > historyCapacity {
				m.rmsdTrace = m.rmsdTrace[1:]
			}
		default:
			return
		}
	}
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")
	status := "RUNNING"
	if m.done {
		status = doneStyle.Render("FINISHED")
	}
	s.WriteString(status + "\n\n")
	if len(m.etotTrace) > 1 {
		chart := asciigraph.Plot(m.etotTrace,
			asciigraph.Height(6),
			asciigraph.Width(60),
			asciigraph.Caption("total energy per particle"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}
	if len(m.rmsdTrace) > 1 {
		chart := asciigraph.Plot(m.rmsdTrace,
			asciigraph.Height(4),
			asciigraph.Width(60),
			asciigraph.Caption("rmsd"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}
	s.WriteString(progressBar(m.last.Step, m.last.Target) + "\n\n")
	s.WriteString(labelStyle.Render("Step") + valueStyle.Render(fmt.Sprintf("%d / %d", m.last.Step, m.last.Target)) + "\n")
	s.WriteString(labelStyle.Render("Temperature") + valueStyle.Render(fmt.Sprintf("%.4f", m.last.Temperature)) + "\n")
	s.WriteString(labelStyle.Render("E_pot / N") + valueStyle.Render(fmt.Sprintf("%.4f", m.last.Epot)) + "\n")
	s.WriteString(labelStyle.Render("E_kin / N") + valueStyle.Render(fmt.Sprintf("%.4f", m.last.Ekin)) + "\n")
	s.WriteString(labelStyle.Render("E_tot / N") + valueStyle.Render(fmt.Sprintf("%.4f", m.last.Etot)) + "\n")
	s.WriteString(labelStyle.Render("RMSD") + valueStyle.Render(fmt.Sprintf("%.4f", m.last.RMSD)) + "\n")
	s.WriteString(labelStyle.Render("Elapsed") + valueStyle.Render(time.Since(m.started).Round(time.Second).String()) + "\n")
	s.WriteString(helpStyle.Render("Q: quit"))
	return s.String()
}

func progressBar(step, target int) string {
	const width = 60
	if target <= 0 {
		return ""
	}
	ratio := float64(step) / float64(target)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * width)
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]" +
		fmt.Sprintf(" %3d%%", int(ratio*100))
}
