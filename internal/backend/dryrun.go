// Package backend provides simulation backends for the driver: a
// dry-run backend that only counts steps and a velocity-Verlet
// Lennard-Jones backend that owns a physical system.
package backend

import "context"

// DryRun advances nothing but its step counter. It is the default
// backend and a convenient stand-in for tests and scheduling dry runs.
type DryRun struct {
	steps      int
	outputPath string
}

func NewDryRun() *DryRun { return &DryRun{} }

func (b *DryRun) RunPre(restart bool) error { return nil }

func (b *DryRun) RunUntil(ctx context.Context, step int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.steps = step
	return nil
}

func (b *DryRun) Steps() int                { return b.steps }
func (b *DryRun) SetSteps(step int)         { b.steps = step }
func (b *DryRun) SetOutputPath(path string) { b.outputPath = path }
func (b *DryRun) Version() string           { return "dryrun 0" }
