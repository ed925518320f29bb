package runner

import (
	"log/slog"
	"slices"
	"time"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/engine"
)

// Phase is a unit's position in its execution lifecycle.
//
//	Pending -> Applying -> Applied | Failed
//	Applied -> Reverting -> Pending | Failed
type Phase int

const (
	PhasePending Phase = iota
	PhaseApplying
	PhaseApplied
	PhaseFailed
	PhaseReverting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseApplying:
		return "applying"
	case PhaseApplied:
		return "applied"
	case PhaseFailed:
		return "failed"
	case PhaseReverting:
		return "reverting"
	default:
		return "unknown"
	}
}

var transitions = map[Phase][]Phase{
	PhasePending:   {PhaseApplying},
	PhaseApplying:  {PhaseApplied, PhaseFailed},
	PhaseApplied:   {PhaseReverting},
	PhaseReverting: {PhasePending, PhaseFailed},
	PhaseFailed:    {PhaseApplying, PhaseReverting},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}

// tracker follows one unit through its lifecycle and logs each transition.
type tracker struct {
	unit  engine.Unit
	phase Phase
}

func newTracker(u engine.Unit, dir engine.Direction) *tracker {
	start := PhasePending
	if dir == engine.Down {
		start = PhaseApplied
	}
	return &tracker{unit: u, phase: start}
}

func (t *tracker) to(next Phase) error {
	if !CanTransition(t.phase, next) {
		return alerr.New(alerr.EInternalError, "illegal unit state transition").
			WithVersion(t.unit.Version, t.unit.Name).
			With("from", t.phase.String()).
			With("to", next.String())
	}
	slog.Info("unit state",
		"version", t.unit.Version,
		"name", t.unit.Name,
		"from", t.phase.String(),
		"to", next.String())
	t.phase = next
	return nil
}

// Outcome is the per-unit result printed by migrate and rollback.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeReverted Outcome = "reverted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result describes what happened to one unit.
type Result struct {
	Version      int64
	Name         string
	Direction    engine.Direction
	Outcome      Outcome
	Phase        Phase
	StepsRun     int
	StepsSkipped int
	Notes        map[string]int64
	Duration     time.Duration
	Err          error
}

// Report is the outcome of one runner invocation.
type Report struct {
	Direction engine.Direction
	Results   []Result
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the failed result, if any.
func (r *Report) Failed() *Result {
	for i := range r.Results {
		if r.Results[i].Outcome == OutcomeFailed {
			return &r.Results[i]
		}
	}
	return nil
}
