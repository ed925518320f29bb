package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hlop3z/strata/internal/alerr"
)

// ExecOptions controls how ExecuteSteps runs a sequence.
type ExecOptions struct {
	// Unit labels log lines and errors.
	Unit string

	// Detached runs guards and actions with cancellation stripped from ctx.
	// Used when steps are not covered by a transaction: a statement cut off
	// midway would leave the database in a state no guard describes.
	// ctx is still checked between steps.
	Detached bool
}

// StepOutcome records what happened to one step.
type StepOutcome struct {
	Index    int
	Step     Step
	Skipped  bool
	Duration time.Duration
}

// Execution is the trace of an ExecuteSteps call, complete or not.
type Execution struct {
	Outcomes []StepOutcome
}

// Ran returns the number of steps whose action executed.
func (e *Execution) Ran() int {
	n := 0
	for _, o := range e.Outcomes {
		if !o.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the number of steps whose guard reported them applied.
func (e *Execution) Skipped() int {
	return len(e.Outcomes) - e.Ran()
}

// Completed returns the outcomes whose action executed, in order.
func (e *Execution) Completed() []StepOutcome {
	var out []StepOutcome
	for _, o := range e.Outcomes {
		if !o.Skipped {
			out = append(out, o)
		}
	}
	return out
}

// ExecuteSteps runs steps in order. For each step the guard is asked first;
// an applied step is skipped and logged. The first failing action or guard
// stops the sequence. The returned Execution covers every step attempted
// before the failure.
func ExecuteSteps(ctx context.Context, sc *StepContext, steps []Step, opts ExecOptions) (*Execution, error) {
	exec := &Execution{}

	runCtx := ctx
	if opts.Detached {
		runCtx = context.WithoutCancel(ctx)
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return exec, alerr.Wrap(alerr.ErrMigrationFailed, err, "cancelled between steps").
				With("unit", opts.Unit).
				With("next_step", step.Name).
				With("index", i)
		}

		if step.Guard != nil {
			applied, err := step.Guard(runCtx, sc)
			if err != nil {
				return exec, alerr.Wrap(alerr.ErrIntrospection, err, "step guard could not be evaluated").
					With("unit", opts.Unit).
					With("step", step.Name).
					With("kind", step.Kind.String()).
					With("index", i)
			}
			if applied {
				slog.Info("step already applied, skipping",
					"unit", opts.Unit,
					"step", step.Name,
					"kind", step.Kind.String())
				exec.Outcomes = append(exec.Outcomes, StepOutcome{Index: i, Step: step, Skipped: true})
				continue
			}
		}

		start := time.Now()
		if err := step.Action(runCtx, sc); err != nil {
			return exec, alerr.Wrap(alerr.ErrStepFailed, err, "step failed").
				With("unit", opts.Unit).
				With("step", step.Name).
				With("kind", step.Kind.String()).
				With("index", i)
		}
		elapsed := time.Since(start)
		slog.Debug("step applied",
			"unit", opts.Unit,
			"step", step.Name,
			"duration", elapsed)
		exec.Outcomes = append(exec.Outcomes, StepOutcome{Index: i, Step: step, Duration: elapsed})
	}

	return exec, nil
}
