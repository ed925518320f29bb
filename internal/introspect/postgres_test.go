//go:build integration

package introspect_test

import (
	"context"
	"testing"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/introspect"
	"github.com/hlop3z/strata/internal/testutil"
)

func TestPostgresExistence(t *testing.T) {
	db := testutil.SetupPostgres(t)
	ctx := context.Background()

	testutil.ExecSQL(t, db, `CREATE TABLE users (id TEXT PRIMARY KEY, role TEXT, tags TEXT[])`)
	testutil.ExecSQL(t, db, `CREATE INDEX users_role_idx ON users (role)`)
	testutil.ExecSQL(t, db, `ALTER TABLE users ADD CONSTRAINT users_role_check CHECK (role <> '')`)

	in := introspect.New(db, dialect.Postgres())

	checks := []struct {
		name string
		fn   func() (bool, error)
		want bool
	}{
		{"table", func() (bool, error) { return in.TableExists(ctx, "users") }, true},
		{"column", func() (bool, error) { return in.ColumnExists(ctx, "users", "role") }, true},
		{"missing column", func() (bool, error) { return in.ColumnExists(ctx, "users", "phone") }, false},
		{"index", func() (bool, error) { return in.IndexExists(ctx, "users_role_idx") }, true},
		{"constraint", func() (bool, error) { return in.ConstraintExists(ctx, "users", "users_role_check") }, true},
		{"nullable", func() (bool, error) { return in.ColumnIsNullable(ctx, "users", "role") }, true},
		{"array", func() (bool, error) { return in.ColumnIsArray(ctx, "users", "tags") }, true},
		{"scalar", func() (bool, error) { return in.ColumnIsArray(ctx, "users", "role") }, false},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}
