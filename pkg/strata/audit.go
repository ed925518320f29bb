package strata

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/drift"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/introspect"
	"github.com/hlop3z/strata/internal/reshape"
	"github.com/hlop3z/strata/internal/verify"
)

// Re-exported audit types.
type (
	Violation       = verify.Violation
	PartitionReport = reshape.PartitionReport
	SchemaHash      = drift.SchemaHash
)

// Verify reports every user whose profile rows disagree with their role.
// It never writes.
func (c *Client) Verify(ctx context.Context) ([]Violation, error) {
	return verify.New(c.db, c.dialect, c.config.Policy).Verify(ctx)
}

// Repair re-runs the role partitioning in one transaction under the
// migration lock. Rows with unknown roles are left for Verify to report.
func (c *Client) Repair(ctx context.Context) (*PartitionReport, error) {
	var report *PartitionReport
	err := c.runner.Exclusive(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin repair transaction")
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				slog.Warn("repair rollback failed", "error", rbErr)
			}
		}()

		sc := engine.NewStepContext(tx, c.dialect)
		report, err = reshape.Partition{Policy: c.config.Policy}.Run(ctx, sc)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit repair")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Fingerprint hashes the live schema, excluding strata's own tables.
func (c *Client) Fingerprint(ctx context.Context) (*SchemaHash, error) {
	return drift.Fingerprint(ctx, introspect.New(c.db, c.dialect))
}
