package strata

import (
	"context"

	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/engine/runner"
)

// Re-exported runner types so callers need no internal imports.
type (
	Report      = runner.Report
	Result      = runner.Result
	Outcome     = runner.Outcome
	UnitStatus  = runner.UnitStatus
	UnitState   = runner.UnitState
	PlannedUnit = runner.PlannedUnit
	PlannedStep = runner.PlannedStep
	LockInfo    = runner.LockInfo
	Unit        = engine.Unit
	Direction   = engine.Direction
	Warning     = engine.Warning
)

// Outcomes, states and directions callers switch on.
const (
	OutcomeApplied  = runner.OutcomeApplied
	OutcomeReverted = runner.OutcomeReverted
	OutcomeSkipped  = runner.OutcomeSkipped
	OutcomeFailed   = runner.OutcomeFailed

	StateApplied = runner.StateApplied
	StatePending = runner.StatePending
	StateSkipped = runner.StateSkipped
	StateMissing = runner.StateMissing

	Up   = engine.Up
	Down = engine.Down
)

// Migrate applies pending units up to target (0 = latest).
// On failure the returned report still lists the units that completed.
func (c *Client) Migrate(ctx context.Context, target int64) (*Report, error) {
	return c.runner.Migrate(ctx, target)
}

// Rollback reverts the newest steps applied units.
func (c *Client) Rollback(ctx context.Context, steps int) (*Report, error) {
	return c.runner.Rollback(ctx, steps)
}

// RevertTo reverts every applied unit newer than version (0 = everything).
func (c *Client) RevertTo(ctx context.Context, version int64) (*Report, error) {
	return c.runner.RevertTo(ctx, version)
}

// Revert reverts exactly the given versions, which must be the newest applied ones.
func (c *Client) Revert(ctx context.Context, versions ...int64) (*Report, error) {
	return c.runner.Revert(ctx, versions...)
}

// Status lists every registered or recorded unit with its state.
func (c *Client) Status(ctx context.Context) ([]UnitStatus, error) {
	return c.runner.Status(ctx)
}

// Plan reports what Migrate(target) would run and which units it would skip.
func (c *Client) Plan(ctx context.Context, target int64) ([]PlannedUnit, []Unit, error) {
	return c.runner.DryRun(ctx, target)
}

// LockInfo returns the current migration lock holder.
func (c *Client) LockInfo(ctx context.Context) (*LockInfo, error) {
	return c.runner.LockInfo(ctx)
}

// ForceUnlock clears a lock left behind by a crashed run.
func (c *Client) ForceUnlock(ctx context.Context) error {
	return c.runner.ForceUnlock(ctx)
}

// Lint lists destructive effects of running u in dir.
func Lint(u Unit, dir Direction) []Warning {
	return engine.Lint(u, dir)
}
