package runner

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/engine"
)

// PlanUp creates a plan for applying units.
//
// Pending units are those above the ledger head, up to target (0 = latest).
// Registered units below the head that were never applied are gaps: they go
// into Plan.Skipped and are never executed.
func PlanUp(reg *engine.Registry, applied []AppliedMigration, target int64) (*engine.Plan, error) {
	plan := &engine.Plan{Direction: engine.Up}

	if target == 0 {
		target = reg.Latest()
	} else if _, ok := reg.Get(target); !ok {
		return nil, alerr.New(alerr.ErrMigrationNotFound, "target unit is not registered").
			With("target", target)
	}

	appliedSet := make(map[int64]bool, len(applied))
	var head int64
	for _, a := range applied {
		appliedSet[a.Version] = true
		head = max(head, a.Version)
	}

	for _, u := range reg.Units() {
		switch {
		case appliedSet[u.Version]:
			continue
		case u.Version < head:
			plan.Skipped = append(plan.Skipped, u)
		case u.Version <= target:
			plan.Units = append(plan.Units, u)
		}
	}

	return plan, nil
}

// PlanDown creates a plan reverting the newest steps ledger entries.
func PlanDown(reg *engine.Registry, applied []AppliedMigration, steps int) (*engine.Plan, error) {
	if steps < 1 {
		return nil, alerr.New(alerr.ErrConfigInvalid, "rollback steps must be at least 1").
			With("steps", steps)
	}
	desc := newestFirst(applied)
	if steps < len(desc) {
		desc = desc[:steps]
	}
	return resolveDown(reg, desc)
}

// PlanRevertTo creates a plan reverting every ledger entry above version.
// version must be 0 (revert everything) or present in the ledger.
func PlanRevertTo(reg *engine.Registry, applied []AppliedMigration, version int64) (*engine.Plan, error) {
	if version != 0 && !slices.ContainsFunc(applied, func(a AppliedMigration) bool { return a.Version == version }) {
		return nil, alerr.New(alerr.ErrMigrationNotFound, "revert target is not in the ledger").
			With("target", version)
	}
	var desc []AppliedMigration
	for _, a := range newestFirst(applied) {
		if a.Version <= version {
			break
		}
		desc = append(desc, a)
	}
	return resolveDown(reg, desc)
}

// PlanRevert creates a plan reverting exactly versions.
// The set must be a contiguous suffix of the ledger: reverting a unit while
// a newer one stays applied is rejected before anything runs.
func PlanRevert(reg *engine.Registry, applied []AppliedMigration, versions []int64) (*engine.Plan, error) {
	if len(versions) == 0 {
		return &engine.Plan{Direction: engine.Down}, nil
	}

	appliedSet := make(map[int64]bool, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = true
	}
	want := make(map[int64]bool, len(versions))
	for _, v := range versions {
		if !appliedSet[v] {
			return nil, alerr.New(alerr.ErrMigrationNotFound, "unit is not applied").
				With("version", v)
		}
		want[v] = true
	}

	desc := newestFirst(applied)
	suffix := desc[:len(want)]
	for _, a := range suffix {
		if !want[a.Version] {
			return nil, alerr.New(alerr.ErrOutOfOrderRevert, "only the newest applied units can be reverted").
				With("requested", slices.Sorted(maps.Keys(want))).
				With("blocking", a.Version).
				WithHelp("revert newer units first, or use rollback --to")
		}
	}
	return resolveDown(reg, suffix)
}

// resolveDown maps ledger entries (newest first) to reversible registered units.
func resolveDown(reg *engine.Registry, desc []AppliedMigration) (*engine.Plan, error) {
	plan := &engine.Plan{Direction: engine.Down}
	for _, a := range desc {
		u, ok := reg.Get(a.Version)
		if !ok {
			return nil, alerr.New(alerr.ErrMigrationNotFound, "ledger references an unregistered unit").
				WithVersion(a.Version, a.Name)
		}
		if !u.Reversible() {
			return nil, alerr.New(alerr.ErrMigrationIrreversible, "cannot revert irreversible unit").
				WithVersion(u.Version, u.Name)
		}
		plan.Units = append(plan.Units, u)
	}
	return plan, nil
}

// UnitState is the status of one version as seen by Status.
type UnitState string

const (
	// StateApplied is in the ledger and registered.
	StateApplied UnitState = "applied"
	// StatePending is registered, above the ledger head and not applied.
	StatePending UnitState = "pending"
	// StateSkipped is registered, below the ledger head and not applied.
	StateSkipped UnitState = "skipped"
	// StateMissing is in the ledger but not registered.
	StateMissing UnitState = "missing"
)

// UnitStatus is one row of status output.
type UnitStatus struct {
	Version     int64
	Name        string
	Description string
	State       UnitState
	AppliedAt   time.Time
	Reversible  bool
}

// GetStatus merges registered units and ledger rows into one ascending list.
func GetStatus(reg *engine.Registry, applied []AppliedMigration) []UnitStatus {
	appliedMap := make(map[int64]AppliedMigration, len(applied))
	var head int64
	for _, a := range applied {
		appliedMap[a.Version] = a
		head = max(head, a.Version)
	}

	versions := make([]int64, 0, reg.Len()+len(appliedMap))
	for _, u := range reg.Units() {
		versions = append(versions, u.Version)
	}
	for v := range appliedMap {
		if _, ok := reg.Get(v); !ok {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)

	out := make([]UnitStatus, 0, len(versions))
	for _, v := range versions {
		u, registered := reg.Get(v)
		a, isApplied := appliedMap[v]

		st := UnitStatus{Version: v, Name: u.Name, Description: u.Description, Reversible: u.Reversible()}
		switch {
		case !registered:
			st.Name = a.Name
			st.State = StateMissing
			st.AppliedAt = a.AppliedAt
		case isApplied:
			st.State = StateApplied
			st.AppliedAt = a.AppliedAt
		case v < head:
			st.State = StateSkipped
		default:
			st.State = StatePending
		}
		out = append(out, st)
	}
	return out
}

func newestFirst(applied []AppliedMigration) []AppliedMigration {
	desc := slices.Clone(applied)
	slices.SortFunc(desc, func(a, b AppliedMigration) int {
		return cmp.Compare(b.Version, a.Version)
	})
	return desc
}
