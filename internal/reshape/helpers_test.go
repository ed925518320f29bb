package reshape_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
)

// run executes steps on db and returns the trace and the step context.
func run(t *testing.T, db *sql.DB, steps []engine.Step) (*engine.Execution, *engine.StepContext, error) {
	t.Helper()
	sc := engine.NewStepContext(db, dialect.SQLite())
	exec, err := engine.ExecuteSteps(context.Background(), sc, steps, engine.ExecOptions{Unit: t.Name()})
	return exec, sc, err
}

// mustRun executes steps and fails the test on error.
func mustRun(t *testing.T, db *sql.DB, steps []engine.Step) (*engine.Execution, *engine.StepContext) {
	t.Helper()
	exec, sc, err := run(t, db, steps)
	if err != nil {
		t.Fatalf("steps failed: %v", err)
	}
	return exec, sc
}

// column returns table.column values ordered by key, NULL as "<nil>".
func column(t *testing.T, db *sql.DB, table, col, key string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT "` + col + `" FROM "` + table + `" ORDER BY "` + key + `"`)
	if err != nil {
		t.Fatalf("query %s.%s: %v", table, col, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan %s.%s: %v", table, col, err)
		}
		if v.Valid {
			out = append(out, v.String)
		} else {
			out = append(out, "<nil>")
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate %s.%s: %v", table, col, err)
	}
	return out
}
