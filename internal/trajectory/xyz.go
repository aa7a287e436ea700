// Package trajectory writes particle configurations to disk in an
// extended XYZ format, one appended frame per sampled step.
package trajectory

import (
	"bufio"
	"fmt"
	"os"

	"github.com/san-kum/mdsim/internal/system"
)

// XYZ appends frames to a single trajectory file.
type XYZ struct {
	path string
}

func NewXYZ(path string) *XYZ {
	return &XYZ{path: path}
}

func (t *XYZ) Path() string { return t.path }

// Write appends one frame: particle count, a comment line with the
// step and cell side, then one line per particle.
func (t *XYZ) Write(sys *system.System, step int) error {
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trajectory: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d\n", len(sys.Particles))
	if sys.Cell != nil {
		fmt.Fprintf(w, "step:%d columns:species,pos,vel side:%g,%g,%g\n",
			step, sys.Cell.Side[0], sys.Cell.Side[1], sys.Cell.Side[2])
	} else {
		fmt.Fprintf(w, "step:%d columns:species,pos,vel\n", step)
	}
	for _, p := range sys.Particles {
		fmt.Fprintf(w, "%s %g %g %g %g %g %g\n", p.Species,
			p.Position[0], p.Position[1], p.Position[2],
			p.Velocity[0], p.Velocity[1], p.Velocity[2])
	}
	return w.Flush()
}

// Clear removes the trajectory file; a missing file is not an error.
func (t *XYZ) Clear() error {
	err := os.Remove(t.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
