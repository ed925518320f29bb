package migrations

import (
	"context"
	"database/sql"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/drift"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/engine/runner"
	"github.com/hlop3z/strata/internal/introspect"
	"github.com/hlop3z/strata/internal/roles"
	"github.com/hlop3z/strata/internal/testutil"
	"github.com/hlop3z/strata/internal/verify"
)

// -----------------------------------------------------------------------------
// Test Helpers
// -----------------------------------------------------------------------------

func newRunner(t *testing.T, db *sql.DB) *runner.Runner {
	t.Helper()
	reg, err := Registry(roles.Default())
	if err != nil {
		t.Fatalf("Registry() error: %v", err)
	}
	return runner.New(db, dialect.SQLite(), reg)
}

func fingerprint(t *testing.T, db *sql.DB) *drift.SchemaHash {
	t.Helper()
	h, err := drift.Fingerprint(context.Background(), introspect.New(db, dialect.SQLite()))
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	return h
}

func assertSameSchema(t *testing.T, want, got *drift.SchemaHash) {
	t.Helper()
	if c := drift.CompareHashes(want, got); !c.Match {
		t.Errorf("schema changed:\n%s", drift.FormatComparison(c))
	}
}

// seedLegacy inserts pre-reshape data once the base tables exist.
func seedLegacy(t *testing.T, db *sql.DB) {
	t.Helper()
	testutil.ExecSQL(t, db, `INSERT INTO users (id, email, name, role) VALUES
		('u1', 'tina@example.com', 'Tina', 'tenant'),
		('u2', 'olga@example.com', NULL, 'operator'),
		('u3', 'nora@example.com', NULL, NULL),
		('u4', 'ada@example.com', 'Ada', 'admin')`)
	// u2 is an operator that also carries a tenant profile.
	testutil.ExecSQL(t, db, `INSERT INTO tenant_profiles (user_id, full_name) VALUES ('u1', 'Tina T'), ('u2', 'Olga')`)
	testutil.ExecSQL(t, db, `INSERT INTO operator_profiles (user_id, full_name, phone) VALUES ('u2', 'Olga O', '555')`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences (user_id, property_type) VALUES ('u1', 'house'), ('u3', ''), ('u4', 'flat')`)
}

func queryMap(t *testing.T, db *sql.DB, query string) map[string]string {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if v.Valid {
			out[k] = v.String
		} else {
			out[k] = "<nil>"
		}
	}
	return out
}

// rowCounts returns the row count of every user table.
func rowCounts(t *testing.T, db *sql.DB) map[string]int {
	t.Helper()
	tables, err := introspect.New(db, dialect.SQLite()).ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error: %v", err)
	}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		counts[table] = testutil.QueryInt(t, db, `SELECT COUNT(*) FROM "`+table+`"`)
	}
	return counts
}

// snapshot renders every row of table ordered by its first column.
func snapshot(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT * FROM "` + table + `" ORDER BY 1`)
	if err != nil {
		t.Fatalf("snapshot %s: %v", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("snapshot %s columns: %v", table, err)
	}
	var out []string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			t.Fatalf("snapshot %s scan: %v", table, err)
		}
		fields := make([]string, len(cols))
		for i, v := range vals {
			fields[i] = cols[i] + "=<nil>"
			if v.Valid {
				fields[i] = cols[i] + "=" + v.String
			}
		}
		out = append(out, strings.Join(fields, " "))
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("snapshot %s rows: %v", table, err)
	}
	return out
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestRegistryOrderIgnoresRegistration(t *testing.T) {
	units := All(roles.Default())
	rand.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })

	reg, err := engine.NewRegistry(units...)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	var got []int64
	for _, u := range reg.Units() {
		got = append(got, u.Version)
	}
	want := []int64{
		VersionCreateUsers, VersionCreateProfiles, VersionCreatePreferences,
		VersionPromoteTypes, VersionPartitionProfiles, VersionRelocatePhone, VersionConsolidateName,
	}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestUnitsAreReversible(t *testing.T) {
	for _, u := range All(roles.Default()) {
		if !u.Reversible() {
			t.Errorf("%s has no backward steps", u.Label())
		}
	}
}

func TestMigrateReshapesLegacyData(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	r := newRunner(t, db)

	if _, err := r.Migrate(ctx, VersionCreatePreferences); err != nil {
		t.Fatalf("Migrate(base) error: %v", err)
	}
	seedLegacy(t, db)

	report, err := r.Migrate(ctx, 0)
	if err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if n := report.Count(runner.OutcomeApplied); n != 4 {
		t.Errorf("applied = %d, want 4", n)
	}

	t.Run("property types promoted", func(t *testing.T) {
		got := queryMap(t, db, `SELECT user_id, property_type FROM preferences`)
		want := map[string]string{"u1": `["house"]`, "u3": `[]`}
		if len(got) != len(want) || got["u1"] != want["u1"] || got["u3"] != want["u3"] {
			t.Errorf("preferences = %v, want %v", got, want)
		}
	})

	t.Run("roles partitioned", func(t *testing.T) {
		if got := testutil.QueryString(t, db, `SELECT role FROM users WHERE id = 'u3'`); got != "tenant" {
			t.Errorf("u3 role = %q, want tenant", got)
		}
		tenants := queryMap(t, db, `SELECT user_id, user_id FROM tenant_profiles`)
		if len(tenants) != 2 || tenants["u1"] == "" || tenants["u3"] == "" {
			t.Errorf("tenant profiles = %v, want u1 and u3", tenants)
		}
		testutil.AssertRowCount(t, db, "operator_profiles", 1)
	})

	t.Run("phone relocated", func(t *testing.T) {
		testutil.AssertColumnNotExists(t, db, "operator_profiles", "phone")
		if got := testutil.QueryString(t, db, `SELECT phone FROM users WHERE id = 'u2'`); got != "555" {
			t.Errorf("u2 phone = %q, want 555", got)
		}
	})

	t.Run("display name consolidated", func(t *testing.T) {
		got := queryMap(t, db, `SELECT id, display_name FROM users`)
		want := map[string]string{"u1": "Tina", "u2": "Olga O", "u3": "<nil>", "u4": "Ada"}
		for id, w := range want {
			if got[id] != w {
				t.Errorf("%s display_name = %q, want %q", id, got[id], w)
			}
		}
		testutil.AssertColumnNotExists(t, db, "users", "name")
		testutil.AssertColumnNotExists(t, db, "tenant_profiles", "full_name")
	})

	t.Run("invariants hold", func(t *testing.T) {
		violations, err := verify.New(db, dialect.SQLite(), roles.Default()).Verify(ctx)
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if len(violations) != 0 {
			t.Errorf("violations = %v, want none", violations)
		}
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	r := newRunner(t, db)

	if _, err := r.Migrate(ctx, 0); err != nil {
		t.Fatalf("first Migrate() error: %v", err)
	}
	before := fingerprint(t, db)

	report, err := r.Migrate(ctx, 0)
	if err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("second run produced %d results, want 0", len(report.Results))
	}
	assertSameSchema(t, before, fingerprint(t, db))
}

func TestForwardStepsRerunAfterMigrate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	r := newRunner(t, db)

	if _, err := r.Migrate(ctx, VersionCreatePreferences); err != nil {
		t.Fatalf("Migrate(base) error: %v", err)
	}
	seedLegacy(t, db)
	if _, err := r.Migrate(ctx, 0); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	tables := []string{"users", "tenant_profiles", "operator_profiles", "preferences"}
	schema := fingerprint(t, db)
	data := make(map[string][]string, len(tables))
	for _, table := range tables {
		data[table] = snapshot(t, db, table)
	}

	for _, u := range All(roles.Default()) {
		t.Run(u.Name, func(t *testing.T) {
			sc := engine.NewStepContext(db, dialect.SQLite())
			exec, err := engine.ExecuteSteps(ctx, sc, u.Forward, engine.ExecOptions{Unit: u.Label()})
			if err != nil {
				t.Fatalf("re-run forward: %v", err)
			}

			// The partition pass has no guard; it runs and finds nothing to change.
			want := 0
			if u.Version == VersionPartitionProfiles {
				want = 1
			}
			if exec.Ran() != want {
				t.Errorf("ran %d steps, want %d", exec.Ran(), want)
			}

			assertSameSchema(t, schema, fingerprint(t, db))
			for _, table := range tables {
				if got := snapshot(t, db, table); !slices.Equal(got, data[table]) {
					t.Errorf("%s changed:\n got %v\nwant %v", table, got, data[table])
				}
			}
		})
	}
}

func TestEveryUnitRoundTrips(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	r := newRunner(t, db)

	for _, u := range All(roles.Default()) {
		before := fingerprint(t, db)
		counts := rowCounts(t, db)

		if _, err := r.Migrate(ctx, u.Version); err != nil {
			t.Fatalf("apply %s: %v", u.Label(), err)
		}
		if _, err := r.Rollback(ctx, 1); err != nil {
			t.Fatalf("revert %s: %v", u.Label(), err)
		}
		assertSameSchema(t, before, fingerprint(t, db))

		// Partitioning keeps the profile rows it created or deleted.
		if u.Version != VersionPartitionProfiles {
			if got := rowCounts(t, db); !maps.Equal(got, counts) {
				t.Errorf("%s: row counts = %v, want %v", u.Label(), got, counts)
			}
		}

		if _, err := r.Migrate(ctx, u.Version); err != nil {
			t.Fatalf("re-apply %s: %v", u.Label(), err)
		}
		// Later units reshape real rows.
		if u.Version == VersionCreatePreferences {
			seedLegacy(t, db)
		}
	}

	if _, err := r.RevertTo(ctx, 0); err != nil {
		t.Fatalf("RevertTo(0) error: %v", err)
	}
	if tables := fingerprint(t, db).Tables; len(tables) != 0 {
		t.Errorf("tables left after full revert: %v", tables)
	}
}
