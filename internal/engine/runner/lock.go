package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/introspect"
)

// Lock table schema (single row, id = 1):
// CREATE TABLE strata_migration_lock (
//     id        INTEGER PRIMARY KEY,
//     locked    INTEGER NOT NULL DEFAULT 0,
//     locked_by TEXT,
//     locked_at TEXT
// )

const (
	// LockTableName is the name of the migration lock table.
	LockTableName = introspect.InternalTablePrefix + "migration_lock"

	// DefaultLockTimeout is used when AcquireLock is given a zero timeout.
	DefaultLockTimeout = 30 * time.Second

	lockPollInterval = 200 * time.Millisecond
)

// LockInfo describes the current lock holder.
type LockInfo struct {
	Locked   bool
	LockedBy string
	LockedAt time.Time
}

// lockOwner identifies this process as "hostname/uuid".
func lockOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "/" + uuid.NewString()
}

// Owner returns the identity this manager writes into the lock row.
func (v *VersionManager) Owner() string {
	return v.owner
}

// EnsureLockTable creates the lock table and its single row.
func (v *VersionManager) EnsureLockTable(ctx context.Context) error {
	table := v.dialect.QuoteIdent(LockTableName)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id        INTEGER PRIMARY KEY,
    locked    INTEGER NOT NULL DEFAULT 0,
    locked_by TEXT,
    locked_at TEXT
)`, table),
		fmt.Sprintf("INSERT INTO %s (id, locked) VALUES (1, 0) ON CONFLICT (id) DO NOTHING", table),
	}
	for _, stmt := range stmts {
		if _, err := v.q.ExecContext(ctx, stmt); err != nil {
			return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to create lock table").
				WithSQL(stmt)
		}
	}
	return nil
}

// AcquireLock takes the migration lock, polling until timeout elapses.
// A zero timeout means DefaultLockTimeout.
func (v *VersionManager) AcquireLock(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := v.EnsureLockTable(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := v.tryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			slog.Debug("migration lock acquired", "owner", v.owner)
			return nil
		}
		if time.Now().After(deadline) {
			return v.lockTimeoutError(ctx, timeout)
		}

		select {
		case <-ctx.Done():
			return alerr.Wrap(alerr.ErrLockTimeout, ctx.Err(), "cancelled while waiting for migration lock")
		case <-time.After(lockPollInterval):
		}
	}
}

// tryLock flips the lock row from free to held in one statement.
func (v *VersionManager) tryLock(ctx context.Context) (bool, error) {
	query := v.dialect.Rebind(fmt.Sprintf(
		"UPDATE %s SET locked = 1, locked_by = ?, locked_at = ? WHERE id = 1 AND locked = 0",
		v.dialect.QuoteIdent(LockTableName),
	))
	res, err := v.q.ExecContext(ctx, query, v.owner, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to acquire migration lock").
			WithSQL(query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to acquire migration lock")
	}
	return n == 1, nil
}

func (v *VersionManager) lockTimeoutError(ctx context.Context, timeout time.Duration) error {
	e := alerr.New(alerr.ErrLockTimeout, "timed out waiting for migration lock").
		With("timeout", timeout.String())
	if info, err := v.GetLockInfo(ctx); err == nil && info.Locked {
		e.With("locked_by", info.LockedBy)
		if !info.LockedAt.IsZero() {
			e.With("locked_at", info.LockedAt.Format(time.RFC3339))
		}
	}
	return e.WithHelp("if the holder is gone, run 'strata lock release'")
}

// ReleaseLock releases the lock if this manager holds it.
func (v *VersionManager) ReleaseLock(ctx context.Context) error {
	query := v.dialect.Rebind(fmt.Sprintf(
		"UPDATE %s SET locked = 0, locked_by = NULL, locked_at = NULL WHERE id = 1 AND locked_by = ?",
		v.dialect.QuoteIdent(LockTableName),
	))
	if _, err := v.q.ExecContext(ctx, query, v.owner); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to release migration lock").
			WithSQL(query)
	}
	return nil
}

// ForceReleaseLock clears the lock regardless of holder.
func (v *VersionManager) ForceReleaseLock(ctx context.Context) error {
	if err := v.EnsureLockTable(ctx); err != nil {
		return err
	}
	if info, err := v.GetLockInfo(ctx); err == nil && info.Locked {
		slog.Warn("force releasing migration lock", "locked_by", info.LockedBy)
	}
	query := fmt.Sprintf(
		"UPDATE %s SET locked = 0, locked_by = NULL, locked_at = NULL WHERE id = 1",
		v.dialect.QuoteIdent(LockTableName),
	)
	if _, err := v.q.ExecContext(ctx, query); err != nil {
		return alerr.Wrap(alerr.ErrSQLExecution, err, "failed to force release migration lock").
			WithSQL(query)
	}
	return nil
}

// IsLocked reports whether anyone holds the lock.
func (v *VersionManager) IsLocked(ctx context.Context) (bool, error) {
	info, err := v.GetLockInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Locked, nil
}

// GetLockInfo reads the lock row. A missing lock table reads as unlocked.
func (v *VersionManager) GetLockInfo(ctx context.Context) (*LockInfo, error) {
	exists, err := introspect.New(v.q, v.dialect).TableExists(ctx, LockTableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &LockInfo{}, nil
	}

	query := fmt.Sprintf(
		"SELECT locked, locked_by, locked_at FROM %s WHERE id = 1",
		v.dialect.QuoteIdent(LockTableName),
	)
	var (
		locked   int
		lockedBy sql.NullString
		lockedAt sql.NullString
	)
	err = v.q.QueryRowContext(ctx, query).Scan(&locked, &lockedBy, &lockedAt)
	if err == sql.ErrNoRows {
		return &LockInfo{}, nil
	}
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to read migration lock").
			WithSQL(query)
	}

	info := &LockInfo{Locked: locked != 0, LockedBy: lockedBy.String}
	if lockedAt.Valid {
		info.LockedAt = parseTimestamp(lockedAt.String)
	}
	return info, nil
}
