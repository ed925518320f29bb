// Package runner executes migration units against a database: it plans
// from the ledger, holds the migration lock, runs each unit atomically
// where the dialect allows and records the outcome in the ledger.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
)

// lockReleaseTimeout is the maximum time to wait when releasing a migration lock.
const lockReleaseTimeout = 5 * time.Second

// Runner executes migration plans against a database.
type Runner struct {
	db            *sql.DB
	dialect       dialect.Dialect
	registry      *engine.Registry
	versions      *VersionManager
	lockTimeout   time.Duration
	transactional bool
	useLock       bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLockTimeout sets how long to wait for the migration lock.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Runner) { r.lockTimeout = d }
}

// WithTransactionalDDL turns per-unit transactions off when enabled is false.
// Enabling has no effect on a dialect without transactional DDL.
func WithTransactionalDDL(enabled bool) Option {
	return func(r *Runner) { r.transactional = enabled && r.dialect.SupportsTransactionalDDL() }
}

// WithoutLock skips the migration lock. Intended for tests and single-process tools.
func WithoutLock() Option {
	return func(r *Runner) { r.useLock = false }
}

// New creates a new migration runner.
// Returns nil if db, dialect or registry is nil.
func New(db *sql.DB, d dialect.Dialect, reg *engine.Registry, opts ...Option) *Runner {
	if db == nil || d == nil || reg == nil {
		return nil
	}
	r := &Runner{
		db:            db,
		dialect:       d,
		registry:      reg,
		versions:      NewVersionManager(db, d),
		lockTimeout:   DefaultLockTimeout,
		transactional: d.SupportsTransactionalDDL(),
		useLock:       true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Transactional reports whether units run inside a transaction.
func (r *Runner) Transactional() bool {
	return r.transactional
}

// Versions returns the ledger manager.
func (r *Runner) Versions() *VersionManager {
	return r.versions
}

// Migrate applies pending units in ascending version order up to target
// (0 = latest). It stops at the first failure; units after it stay pending.
func (r *Runner) Migrate(ctx context.Context, target int64) (*Report, error) {
	return r.withLock(ctx, func() (*Report, error) {
		applied, err := r.loadLedger(ctx)
		if err != nil {
			return nil, err
		}
		plan, err := PlanUp(r.registry, applied, target)
		if err != nil {
			return nil, err
		}
		return r.execute(ctx, plan)
	})
}

// Rollback reverts the newest steps applied units.
func (r *Runner) Rollback(ctx context.Context, steps int) (*Report, error) {
	return r.withLock(ctx, func() (*Report, error) {
		applied, err := r.loadLedger(ctx)
		if err != nil {
			return nil, err
		}
		plan, err := PlanDown(r.registry, applied, steps)
		if err != nil {
			return nil, err
		}
		return r.execute(ctx, plan)
	})
}

// RevertTo reverts every applied unit newer than version.
func (r *Runner) RevertTo(ctx context.Context, version int64) (*Report, error) {
	return r.withLock(ctx, func() (*Report, error) {
		applied, err := r.loadLedger(ctx)
		if err != nil {
			return nil, err
		}
		plan, err := PlanRevertTo(r.registry, applied, version)
		if err != nil {
			return nil, err
		}
		return r.execute(ctx, plan)
	})
}

// Revert reverts exactly the given versions, which must be the newest ledger entries.
func (r *Runner) Revert(ctx context.Context, versions ...int64) (*Report, error) {
	return r.withLock(ctx, func() (*Report, error) {
		applied, err := r.loadLedger(ctx)
		if err != nil {
			return nil, err
		}
		plan, err := PlanRevert(r.registry, applied, versions)
		if err != nil {
			return nil, err
		}
		return r.execute(ctx, plan)
	})
}

// Status lists every registered or recorded version. It does not create the ledger.
func (r *Runner) Status(ctx context.Context) ([]UnitStatus, error) {
	applied, err := r.readLedger(ctx)
	if err != nil {
		return nil, err
	}
	statuses := GetStatus(r.registry, applied)
	for _, st := range statuses {
		if st.State == StateMissing {
			slog.Warn("ledger references an unregistered unit", "version", st.Version, "name", st.Name)
		}
	}
	return statuses, nil
}

// PlannedStep is a step with its current guard verdict.
type PlannedStep struct {
	Name    string
	Kind    engine.Kind
	Applied bool
	// Unguarded steps have no structural check and always run.
	Unguarded bool
}

// PlannedUnit is a pending unit with the verdict for each forward step.
type PlannedUnit struct {
	Unit  engine.Unit
	Steps []PlannedStep
}

// DryRun reports what Migrate would do without changing anything.
// Guards are evaluated against the current database only, so a step whose
// precondition is created by an earlier pending step reads as not applied.
func (r *Runner) DryRun(ctx context.Context, target int64) ([]PlannedUnit, []engine.Unit, error) {
	applied, err := r.readLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	plan, err := PlanUp(r.registry, applied, target)
	if err != nil {
		return nil, nil, err
	}

	sc := engine.NewStepContext(r.db, r.dialect)
	out := make([]PlannedUnit, 0, len(plan.Units))
	for _, u := range plan.Units {
		pu := PlannedUnit{Unit: u}
		for _, s := range u.Forward {
			ps := PlannedStep{Name: s.Name, Kind: s.Kind, Unguarded: s.Guard == nil}
			if s.Guard != nil {
				ok, err := s.Guard(ctx, sc)
				if err != nil {
					return nil, nil, alerr.Wrap(alerr.ErrIntrospection, err, "step guard could not be evaluated").
						WithVersion(u.Version, u.Name).
						With("step", s.Name)
				}
				ps.Applied = ok
			}
			pu.Steps = append(pu.Steps, ps)
		}
		out = append(out, pu)
	}
	return out, plan.Skipped, nil
}

// LockInfo returns the current migration lock holder.
func (r *Runner) LockInfo(ctx context.Context) (*LockInfo, error) {
	return r.versions.GetLockInfo(ctx)
}

// ForceUnlock clears the migration lock regardless of holder.
func (r *Runner) ForceUnlock(ctx context.Context) error {
	return r.versions.ForceReleaseLock(ctx)
}

// Exclusive runs fn while holding the migration lock, so a data repair
// never interleaves with a migration run.
func (r *Runner) Exclusive(ctx context.Context, fn func() error) error {
	_, err := r.withLock(ctx, func() (*Report, error) {
		return nil, fn()
	})
	return err
}

// withLock runs fn while holding the migration lock.
func (r *Runner) withLock(ctx context.Context, fn func() (*Report, error)) (*Report, error) {
	if r.useLock {
		if err := r.versions.AcquireLock(ctx, r.lockTimeout); err != nil {
			return nil, err
		}
		defer func() {
			// Background context: ctx may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
			defer cancel()
			if err := r.versions.ReleaseLock(releaseCtx); err != nil {
				slog.Warn("failed to release migration lock", "error", err)
			}
		}()
	}
	return fn()
}

// loadLedger creates the ledger if needed and reads it.
func (r *Runner) loadLedger(ctx context.Context) ([]AppliedMigration, error) {
	if err := r.versions.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return r.versions.GetApplied(ctx)
}

// readLedger reads the ledger, treating a missing table as empty.
func (r *Runner) readLedger(ctx context.Context) ([]AppliedMigration, error) {
	exists, err := r.versions.Exists(ctx)
	if err != nil || !exists {
		return nil, err
	}
	return r.versions.GetApplied(ctx)
}

// execute runs a plan unit by unit, stopping at the first failure.
func (r *Runner) execute(ctx context.Context, plan *engine.Plan) (*Report, error) {
	report := &Report{Direction: plan.Direction}

	for _, w := range engine.LintPlan(plan) {
		slog.Warn(w.Message, "version", w.Version, "type", w.Type)
	}

	for _, u := range plan.Skipped {
		slog.Warn("unit below ledger head was never applied, skipping",
			"version", u.Version,
			"name", u.Name)
		report.Results = append(report.Results, Result{
			Version:   u.Version,
			Name:      u.Name,
			Direction: plan.Direction,
			Outcome:   OutcomeSkipped,
			Phase:     PhasePending,
		})
	}

	for _, u := range plan.Units {
		res := r.runOne(ctx, u, plan.Direction)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			return report, alerr.Wrap(alerr.ErrMigrationFailed, res.Err, "migration failed").
				WithVersion(u.Version, u.Name).
				With("direction", plan.Direction.String())
		}
	}

	return report, nil
}

// runOne executes a single unit and records it in the ledger.
func (r *Runner) runOne(ctx context.Context, u engine.Unit, dir engine.Direction) Result {
	res := Result{Version: u.Version, Name: u.Name, Direction: dir}
	tr := newTracker(u, dir)

	fail := func(err error) Result {
		if terr := tr.to(PhaseFailed); terr != nil {
			slog.Error("unit state", "error", terr)
		}
		res.Outcome = OutcomeFailed
		res.Phase = tr.phase
		res.Err = err
		slog.Error("unit failed",
			"version", u.Version,
			"name", u.Name,
			"direction", dir.String(),
			"error", err)
		return res
	}

	running, done, outcome := PhaseApplying, PhaseApplied, OutcomeApplied
	if dir == engine.Down {
		running, done, outcome = PhaseReverting, PhasePending, OutcomeReverted
	}
	if err := tr.to(running); err != nil {
		return fail(err)
	}

	start := time.Now()
	var (
		exec  *engine.Execution
		notes map[string]int64
		err   error
	)
	if r.transactional {
		exec, notes, err = r.runInTx(ctx, u, dir, start)
	} else {
		exec, notes, err = r.runDirect(ctx, u, dir, start)
	}
	res.Duration = time.Since(start)
	res.Notes = notes
	if exec != nil {
		res.StepsRun = exec.Ran()
		res.StepsSkipped = exec.Skipped()
	}
	if err != nil {
		return fail(err)
	}

	if err := tr.to(done); err != nil {
		return fail(err)
	}
	res.Outcome = outcome
	res.Phase = tr.phase

	attrs := []any{
		"version", u.Version,
		"name", u.Name,
		"steps_run", res.StepsRun,
		"steps_skipped", res.StepsSkipped,
		"duration", res.Duration,
	}
	for k, n := range notes {
		attrs = append(attrs, k, n)
	}
	slog.Info("unit "+string(outcome), attrs...)
	return res
}

// runInTx runs the unit's steps and its ledger write in one transaction.
func (r *Runner) runInTx(ctx context.Context, u engine.Unit, dir engine.Direction, start time.Time) (*engine.Execution, map[string]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin transaction").
			WithVersion(u.Version, u.Name)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				slog.Warn("rollback failed", "version", u.Version, "error", rbErr)
			}
		}
	}()

	if err := confirmLedger(ctx, r.versions.In(tx), u, dir); err != nil {
		return nil, nil, err
	}

	sc := engine.NewStepContext(tx, r.dialect)
	exec, err := engine.ExecuteSteps(ctx, sc, u.Steps(dir), engine.ExecOptions{Unit: u.Label()})
	if err != nil {
		return exec, sc.Notes(), err
	}

	if err := r.recordLedger(ctx, r.versions.In(tx), u, dir, time.Since(start)); err != nil {
		return exec, sc.Notes(), err
	}

	if err := tx.Commit(); err != nil {
		return exec, sc.Notes(), alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit transaction").
			WithVersion(u.Version, u.Name)
	}
	committed = true
	return exec, sc.Notes(), nil
}

// runDirect runs the unit's steps without a transaction. Statements are not
// interrupted by cancellation; ctx is only checked between steps. When a
// step fails after others completed, the completed steps are re-checked and
// reported as a partial application.
func (r *Runner) runDirect(ctx context.Context, u engine.Unit, dir engine.Direction, start time.Time) (*engine.Execution, map[string]int64, error) {
	if err := confirmLedger(ctx, r.versions, u, dir); err != nil {
		return nil, nil, err
	}

	sc := engine.NewStepContext(r.db, r.dialect)
	exec, err := engine.ExecuteSteps(ctx, sc, u.Steps(dir), engine.ExecOptions{Unit: u.Label(), Detached: true})
	if err != nil {
		if exec.Ran() == 0 {
			return exec, sc.Notes(), err
		}
		return exec, sc.Notes(), partialError(ctx, sc, u, exec, err)
	}

	if err := r.recordLedger(context.WithoutCancel(ctx), r.versions, u, dir, time.Since(start)); err != nil {
		return exec, sc.Notes(), partialError(ctx, sc, u, exec, err)
	}
	return exec, sc.Notes(), nil
}

// partialError builds the PartialApplication error for a non-transactional
// unit. Completed steps are re-checked newest first; those still present
// are what an operator would have to undo.
func partialError(ctx context.Context, sc *engine.StepContext, u engine.Unit, exec *engine.Execution, cause error) error {
	checkCtx := context.WithoutCancel(ctx)
	completed := exec.Completed()

	names := make([]string, 0, len(completed))
	for _, o := range completed {
		names = append(names, o.Step.Name)
	}

	var compensation []string
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i].Step
		if s.Guard == nil {
			compensation = append(compensation, fmt.Sprintf("%s: unguarded, inspect data", s.Name))
			continue
		}
		applied, err := s.Guard(checkCtx, sc)
		switch {
		case err != nil:
			compensation = append(compensation, fmt.Sprintf("%s: could not verify (%v)", s.Name, err))
		case applied:
			compensation = append(compensation, fmt.Sprintf("%s: present, undo manually", s.Name))
		default:
			compensation = append(compensation, fmt.Sprintf("%s: not present", s.Name))
		}
	}

	return alerr.Wrap(alerr.ErrPartialApplication, cause, "unit left partially applied").
		WithVersion(u.Version, u.Name).
		With("completed_steps", names).
		With("compensation", compensation).
		WithHelp("re-run migrate to finish the unit: completed steps are skipped by their guards")
}

// confirmLedger re-reads the unit's ledger row right before it runs. The
// row disagrees with the plan only when another process migrated without
// holding the lock.
func confirmLedger(ctx context.Context, v *VersionManager, u engine.Unit, dir engine.Direction) error {
	applied, err := v.IsApplied(ctx, u.Version)
	if err != nil {
		return err
	}
	if applied == (dir == engine.Up) {
		return alerr.New(alerr.ErrMigrationFailed, "ledger changed after the unit was planned").
			WithVersion(u.Version, u.Name).
			With("direction", dir.String()).
			WithHelp("another process may be migrating without the migration lock")
	}
	return nil
}

// recordLedger writes the ledger change for a finished unit.
func (r *Runner) recordLedger(ctx context.Context, v *VersionManager, u engine.Unit, dir engine.Direction, elapsed time.Duration) error {
	if dir == engine.Down {
		return v.RecordRollback(ctx, u.Version)
	}
	return v.RecordApplied(ctx, u.Version, u.Name, elapsed)
}
