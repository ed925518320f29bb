// Package engine defines migration units, their guarded steps and the
// executor that applies a step sequence against a live database.
package engine

import (
	"fmt"
	"sort"

	"github.com/hlop3z/strata/internal/alerr"
)

// Direction indicates whether a unit runs forward (apply) or backward (revert).
type Direction int

const (
	// Up applies units.
	Up Direction = iota
	// Down reverts units.
	Down
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Unit is a versioned, named group of steps.
// Versions are compared numerically; a timestamp such as 20240201090000 is typical.
type Unit struct {
	// Version is the unique, totally ordered identifier.
	Version int64

	// Name is the human-readable name (e.g., "promote_property_types").
	Name string

	// Description is a one-line summary shown by status and plan output.
	Description string

	// Forward steps apply the unit.
	Forward []Step

	// Backward steps revert the unit. Empty means the unit is irreversible.
	Backward []Step

	// Lossy documents information a backward pass cannot restore.
	Lossy string
}

// Reversible reports whether the unit declares backward steps.
func (u Unit) Reversible() bool {
	return len(u.Backward) > 0
}

// Steps returns the step sequence for a direction.
func (u Unit) Steps(dir Direction) []Step {
	if dir == Down {
		return u.Backward
	}
	return u.Forward
}

// Label returns "version_name" for logs and messages.
func (u Unit) Label() string {
	return fmt.Sprintf("%d_%s", u.Version, u.Name)
}

// validate checks the unit is well formed before registration.
func (u Unit) validate() error {
	if u.Version <= 0 {
		return alerr.New(alerr.EInternalError, "unit version must be positive").
			WithVersion(u.Version, u.Name)
	}
	if u.Name == "" {
		return alerr.New(alerr.EInternalError, "unit name is required").
			WithVersion(u.Version, "")
	}
	if len(u.Forward) == 0 {
		return alerr.New(alerr.EInternalError, "unit has no forward steps").
			WithVersion(u.Version, u.Name)
	}
	for dir, steps := range map[Direction][]Step{Up: u.Forward, Down: u.Backward} {
		for i, s := range steps {
			if s.Action == nil {
				return alerr.New(alerr.EInternalError, "step has no action").
					WithVersion(u.Version, u.Name).
					With("direction", dir.String()).
					With("index", i).
					With("step", s.Name)
			}
		}
	}
	return nil
}

// Registry holds the set of known units keyed by version.
// Registration order is irrelevant: Units always returns ascending versions.
type Registry struct {
	units map[int64]Unit
}

// NewRegistry creates a registry containing units.
func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{units: make(map[int64]Unit, len(units))}
	for _, u := range units {
		if err := r.Register(u); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a unit. Two units sharing a version is a configuration error.
func (r *Registry) Register(u Unit) error {
	if err := u.validate(); err != nil {
		return err
	}
	if existing, ok := r.units[u.Version]; ok {
		return alerr.New(alerr.ErrMigrationDuplicate, "duplicate unit version").
			WithVersion(u.Version, u.Name).
			With("existing", existing.Name)
	}
	r.units[u.Version] = u
	return nil
}

// Get returns the unit registered under version.
func (r *Registry) Get(version int64) (Unit, bool) {
	u, ok := r.units[version]
	return u, ok
}

// Units returns all units sorted by ascending version.
func (r *Registry) Units() []Unit {
	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Latest returns the highest registered version, or 0 when empty.
func (r *Registry) Latest() int64 {
	var max int64
	for v := range r.units {
		if v > max {
			max = v
		}
	}
	return max
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.units)
}

// Plan represents a set of units to execute in a specific direction.
type Plan struct {
	// Direction of execution (Up or Down).
	Direction Direction

	// Units to execute, in order.
	Units []Unit

	// Skipped are registered units below the ledger head that were never applied.
	// They are reported, never executed.
	Skipped []Unit
}

// IsEmpty returns true if the plan has nothing to execute.
func (p *Plan) IsEmpty() bool {
	return len(p.Units) == 0
}
