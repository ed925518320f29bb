package runner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/introspect"
)

// Ledger table schema:
// CREATE TABLE strata_migrations (
//     version      BIGINT PRIMARY KEY,
//     name         TEXT NOT NULL,
//     applied_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//     exec_time_ms INTEGER
// )

const (
	// MigrationTableName is the name of the ledger table.
	MigrationTableName = introspect.InternalTablePrefix + "migrations"
)

// AppliedMigration is one ledger row.
type AppliedMigration struct {
	Version    int64
	Name       string
	AppliedAt  time.Time
	ExecTimeMs int
}

// VersionManager reads and writes the ledger and owns the migration lock.
// Ledger writes go through whatever querier the manager is bound to, so a
// manager bound to a transaction commits the ledger row with the unit.
type VersionManager struct {
	q       introspect.Querier
	dialect dialect.Dialect
	owner   string
}

// NewVersionManager creates a new VersionManager.
func NewVersionManager(q introspect.Querier, d dialect.Dialect) *VersionManager {
	return &VersionManager{
		q:       q,
		dialect: d,
		owner:   lockOwner(),
	}
}

// In returns a copy of the manager bound to q, sharing the lock identity.
func (v *VersionManager) In(q introspect.Querier) *VersionManager {
	cp := *v
	cp.q = q
	return &cp
}

// EnsureTable creates the ledger table if it doesn't exist.
func (v *VersionManager) EnsureTable(ctx context.Context) error {
	stmt := v.createTableSQL()
	if _, err := v.q.ExecContext(ctx, stmt); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to create ledger table").
			WithSQL(stmt)
	}
	return nil
}

// createTableSQL returns the CREATE TABLE statement for the ledger.
func (v *VersionManager) createTableSQL() string {
	quotedTable := v.dialect.QuoteIdent(MigrationTableName)

	if v.dialect.Name() == "postgres" {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version      BIGINT PRIMARY KEY,
    name         TEXT NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    exec_time_ms INTEGER
)`, quotedTable)
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    version      INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    applied_at   TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')),
    exec_time_ms INTEGER
)`, quotedTable)
}

// Exists reports whether the ledger table has been created.
func (v *VersionManager) Exists(ctx context.Context) (bool, error) {
	return introspect.New(v.q, v.dialect).TableExists(ctx, MigrationTableName)
}

// GetApplied returns all ledger rows ordered by version.
func (v *VersionManager) GetApplied(ctx context.Context) ([]AppliedMigration, error) {
	query := fmt.Sprintf(
		"SELECT version, name, applied_at, exec_time_ms FROM %s ORDER BY version ASC",
		v.dialect.QuoteIdent(MigrationTableName),
	)

	rows, err := v.q.QueryContext(ctx, query)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to query ledger").
			WithSQL(query)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt any
			execTime  sql.NullInt64
		)
		if err := rows.Scan(&m.Version, &m.Name, &appliedAt, &execTime); err != nil {
			return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan ledger row")
		}
		m.AppliedAt = parseTimestamp(appliedAt)
		if execTime.Valid {
			m.ExecTimeMs = int(execTime.Int64)
		}
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "error iterating ledger rows")
	}

	return applied, nil
}

// parseTimestamp converts a driver timestamp value to time.Time.
// SQLite hands back text; lib/pq hands back time.Time.
func parseTimestamp(val any) time.Time {
	switch t := val.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case []byte:
		return parseTimestamp(string(t))
	}
	return time.Time{}
}

// RecordApplied inserts a ledger row.
func (v *VersionManager) RecordApplied(ctx context.Context, version int64, name string, execTime time.Duration) error {
	query := v.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (version, name, exec_time_ms) VALUES (?, ?, ?)",
		v.dialect.QuoteIdent(MigrationTableName),
	))
	if _, err := v.q.ExecContext(ctx, query, version, name, execTime.Milliseconds()); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to record applied unit").
			WithVersion(version, name).
			WithSQL(query)
	}
	return nil
}

// RecordRollback deletes a ledger row.
func (v *VersionManager) RecordRollback(ctx context.Context, version int64) error {
	query := v.dialect.Rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE version = ?",
		v.dialect.QuoteIdent(MigrationTableName),
	))
	if _, err := v.q.ExecContext(ctx, query, version); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to record rollback").
			WithVersion(version, "").
			WithSQL(query)
	}
	return nil
}

// IsApplied checks whether version is in the ledger.
func (v *VersionManager) IsApplied(ctx context.Context, version int64) (bool, error) {
	query := v.dialect.Rebind(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE version = ?",
		v.dialect.QuoteIdent(MigrationTableName),
	))
	var n int
	if err := v.q.QueryRowContext(ctx, query, version).Scan(&n); err != nil {
		return false, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to check ledger").
			WithVersion(version, "")
	}
	return n > 0, nil
}
