package reshape_test

import (
	"context"
	"database/sql"
	"slices"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/reshape"
	"github.com/hlop3z/strata/internal/roles"
	"github.com/hlop3z/strata/internal/testutil"
)

func setupProfiles(t *testing.T) *sql.DB {
	t.Helper()
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE users (id TEXT PRIMARY KEY, role TEXT)`)
	for _, table := range []string{"tenant_profiles", "operator_profiles"} {
		testutil.ExecSQL(t, db, `CREATE TABLE `+table+` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			phone TEXT
		)`)
	}
	testutil.ExecSQL(t, db, `CREATE TABLE preferences (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		property_type TEXT
	)`)
	return db
}

func partition(t *testing.T, db *sql.DB, p roles.Policy) (*reshape.PartitionReport, error) {
	t.Helper()
	sc := engine.NewStepContext(db, dialect.SQLite())
	return reshape.Partition{Policy: p}.Run(context.Background(), sc)
}

func countFor(t *testing.T, db *sql.DB, table, userID string) int {
	t.Helper()
	return testutil.QueryInt(t, db, `SELECT COUNT(*) FROM "`+table+`" WHERE user_id = ?`, userID)
}

func TestPartitionAlignsSatellitesWithRoles(t *testing.T) {
	db := setupProfiles(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES
		('t1', 'tenant'), ('n1', NULL), ('e1', ''), ('o1', 'operator'), ('a1', 'admin'), ('g1', 'guest')`)
	// t1 was wrongly given an operator profile; a1 carries a stray preferences row.
	testutil.ExecSQL(t, db, `INSERT INTO operator_profiles (user_id) VALUES ('t1'), ('g1')`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences (user_id) VALUES ('t1'), ('a1')`)

	report, err := partition(t, db, roles.Default())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Defaulted != 2 {
		t.Errorf("Defaulted = %d, want 2", report.Defaulted)
	}
	if !slices.Equal(report.DefaultedIDs, []string{"e1", "n1"}) {
		t.Errorf("DefaultedIDs = %v, want [e1 n1]", report.DefaultedIDs)
	}
	if report.UnknownRoles != 1 {
		t.Errorf("UnknownRoles = %d, want 1", report.UnknownRoles)
	}
	if got := testutil.QueryString(t, db, `SELECT role FROM users WHERE id = 'n1'`); got != "tenant" {
		t.Errorf("n1 role = %q, want tenant", got)
	}

	tests := []struct {
		user string
		want map[string]int
	}{
		{"t1", map[string]int{"tenant_profiles": 1, "operator_profiles": 0, "preferences": 1}},
		{"n1", map[string]int{"tenant_profiles": 1, "operator_profiles": 0, "preferences": 1}},
		{"e1", map[string]int{"tenant_profiles": 1, "operator_profiles": 0, "preferences": 1}},
		{"o1", map[string]int{"tenant_profiles": 0, "operator_profiles": 1, "preferences": 0}},
		{"a1", map[string]int{"tenant_profiles": 0, "operator_profiles": 0, "preferences": 0}},
		// Unknown roles are reported, not repaired.
		{"g1", map[string]int{"tenant_profiles": 0, "operator_profiles": 1, "preferences": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			for table, want := range tt.want {
				if got := countFor(t, db, table, tt.user); got != want {
					t.Errorf("%s rows = %d, want %d", table, got, want)
				}
			}
		})
	}

	if report.Created["tenant_profile"] != 3 {
		t.Errorf("Created[tenant_profile] = %d, want 3", report.Created["tenant_profile"])
	}
	if report.Deleted["operator_profile"] != 1 {
		t.Errorf("Deleted[operator_profile] = %d, want 1", report.Deleted["operator_profile"])
	}
	if report.Deleted["preferences"] != 1 {
		t.Errorf("Deleted[preferences] = %d, want 1", report.Deleted["preferences"])
	}
}

func TestPartitionIsIdempotent(t *testing.T) {
	db := setupProfiles(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('t1', NULL), ('o1', 'operator')`)

	first, err := partition(t, db, roles.Default())
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if !first.Changed() {
		t.Error("first pass should report changes")
	}

	second, err := partition(t, db, roles.Default())
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if second.Changed() {
		t.Errorf("second pass changed data: %+v", second)
	}
	testutil.AssertRowCount(t, db, "tenant_profiles", 1)
	testutil.AssertRowCount(t, db, "operator_profiles", 1)
	testutil.AssertRowCount(t, db, "preferences", 1)
}

func TestPartitionHonoursDefaultRole(t *testing.T) {
	db := setupProfiles(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', NULL)`)

	if _, err := partition(t, db, roles.Default().WithDefaultRole("operator")); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := testutil.QueryString(t, db, `SELECT role FROM users WHERE id = 'u1'`); got != "operator" {
		t.Errorf("role = %q, want operator", got)
	}
	if got := countFor(t, db, "operator_profiles", "u1"); got != 1 {
		t.Errorf("operator_profiles rows = %d, want 1", got)
	}
}

func TestPartitionRejectsInvalidPolicy(t *testing.T) {
	db := setupProfiles(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', NULL)`)

	_, err := partition(t, db, roles.Default().WithDefaultRole("tennant"))
	testutil.AssertErrorCode(t, err, alerr.ErrPolicyInvalid)

	// Nothing is touched when the policy is rejected.
	if got := testutil.QueryInt(t, db, `SELECT COUNT(*) FROM users WHERE role IS NULL`); got != 1 {
		t.Errorf("unset roles = %d, want 1", got)
	}
}

func TestPartitionStep(t *testing.T) {
	db := setupProfiles(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', 'tenant')`)

	_, sc := mustRun(t, db, reshape.Partition{Policy: roles.Default()}.Forward())
	if sc.Notes()["created_tenant_profile"] != 1 {
		t.Errorf("created_tenant_profile = %d, want 1", sc.Notes()["created_tenant_profile"])
	}
}
