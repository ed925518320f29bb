package testutil

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
)

// ExecSQL executes statements and fails the test on error.
func ExecSQL(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("ExecSQL failed: %v\nquery: %s", err, query)
	}
}

// QueryInt runs a single-value integer query.
func QueryInt(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("QueryInt failed: %v\nquery: %s", err, query)
	}
	return n
}

// QueryString runs a single-value string query. NULL is returned as "<nil>".
func QueryString(t *testing.T, db *sql.DB, query string, args ...any) string {
	t.Helper()
	var s sql.NullString
	if err := db.QueryRow(query, args...).Scan(&s); err != nil {
		t.Fatalf("QueryString failed: %v\nquery: %s", err, query)
	}
	if !s.Valid {
		return "<nil>"
	}
	return s.String
}

// AssertRowCount fails the test unless table holds expected rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()
	got := QueryInt(t, db, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table))
	if got != expected {
		t.Errorf("table %s has %d rows, want %d", table, got, expected)
	}
}

// AssertTableExists fails the test if a sqlite table is missing.
func AssertTableExists(t *testing.T, db *sql.DB, table string) {
	t.Helper()
	n := QueryInt(t, db, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if n == 0 {
		t.Errorf("table %s does not exist", table)
	}
}

// AssertColumnExists fails the test if a sqlite column is missing.
func AssertColumnExists(t *testing.T, db *sql.DB, table, column string) {
	t.Helper()
	n := QueryInt(t, db, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if n == 0 {
		t.Errorf("column %s.%s does not exist", table, column)
	}
}

// AssertColumnNotExists fails the test if a sqlite column is present.
func AssertColumnNotExists(t *testing.T, db *sql.DB, table, column string) {
	t.Helper()
	n := QueryInt(t, db, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if n != 0 {
		t.Errorf("column %s.%s should not exist", table, column)
	}
}

// AssertErrorCode fails the test unless err carries code somewhere in its chain.
func AssertErrorCode(t *testing.T, err error, code alerr.Code) *alerr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	found := alerr.Find(err, code)
	if found == nil {
		var ae *alerr.Error
		if errors.As(err, &ae) {
			t.Fatalf("error code = %s, want %s\n%v", ae.GetCode(), code, err)
		}
		t.Fatalf("error is not an *alerr.Error with code %s: %v", code, err)
	}
	return found
}
