package reshape_test

import (
	"database/sql"
	"slices"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/reshape"
	"github.com/hlop3z/strata/internal/testutil"
)

var operatorLink = reshape.Link{Principal: "users", Key: "id", Satellite: "operator_profiles", Column: "user_id"}

func setupOperators(t *testing.T) *sql.DB {
	t.Helper()
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE users (id TEXT PRIMARY KEY, phone TEXT)`)
	testutil.ExecSQL(t, db, `CREATE TABLE operator_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		phone TEXT
	)`)
	return db
}

func TestRelocationSatelliteToPrincipal(t *testing.T) {
	db := setupOperators(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', NULL), ('u2', '111'), ('u3', NULL)`)
	testutil.ExecSQL(t, db, `INSERT INTO operator_profiles (user_id, phone) VALUES ('u1', '555'), ('u2', '222')`)

	rel := reshape.Relocation{
		From: reshape.ColumnRef{Table: "operator_profiles", Column: "phone"},
		To:   reshape.ColumnRef{Table: "users", Column: "phone"},
		Link: operatorLink,
	}
	exec, sc := mustRun(t, db, rel.Forward())

	got := column(t, db, "users", "phone", "id")
	want := []string{"555", "111", "<nil>"}
	if !slices.Equal(got, want) {
		t.Errorf("users.phone = %v, want %v", got, want)
	}
	testutil.AssertColumnNotExists(t, db, "operator_profiles", "phone")

	notes := sc.Notes()
	if notes["relocated_rows"] != 1 {
		t.Errorf("relocated_rows = %d, want 1", notes["relocated_rows"])
	}
	if notes["relocation_conflicts"] != 1 {
		t.Errorf("relocation_conflicts = %d, want 1", notes["relocation_conflicts"])
	}
	if exec.Skipped() != 1 {
		t.Errorf("skipped = %d, want 1 (users.phone already existed)", exec.Skipped())
	}

	again, _ := mustRun(t, db, rel.Forward())
	if again.Ran() != 0 {
		t.Errorf("second pass ran %d steps, want 0", again.Ran())
	}
}

func TestRelocationUncoveredValuesFail(t *testing.T) {
	db := setupOperators(t)
	testutil.ExecSQL(t, db, `ALTER TABLE operator_profiles DROP COLUMN phone`)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', '555'), ('u2', '999')`)
	testutil.ExecSQL(t, db, `INSERT INTO operator_profiles (user_id) VALUES ('u1')`)

	rel := reshape.Relocation{
		From: reshape.ColumnRef{Table: "users", Column: "phone"},
		To:   reshape.ColumnRef{Table: "operator_profiles", Column: "phone"},
		Link: operatorLink,
	}

	_, _, err := run(t, db, rel.Forward())
	ae := testutil.AssertErrorCode(t, err, alerr.ErrRelocationUncovered)
	if ae.GetContext()["count"] != int64(1) {
		t.Errorf("count = %v, want 1", ae.GetContext()["count"])
	}
	if ids, _ := ae.GetContext()["entity_ids"].([]string); !slices.Equal(ids, []string{"u2"}) {
		t.Errorf("entity_ids = %v, want [u2]", ids)
	}
	testutil.AssertColumnExists(t, db, "users", "phone")

	rel.AllowUncovered = true
	_, sc := mustRun(t, db, rel.Forward())
	if sc.Notes()["relocation_uncovered"] != 1 {
		t.Errorf("relocation_uncovered = %d, want 1", sc.Notes()["relocation_uncovered"])
	}
	if got := column(t, db, "operator_profiles", "phone", "user_id"); !slices.Equal(got, []string{"555"}) {
		t.Errorf("operator_profiles.phone = %v, want [555]", got)
	}
	testutil.AssertColumnNotExists(t, db, "users", "phone")
}

func TestRelocationBackward(t *testing.T) {
	db := setupOperators(t)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', NULL), ('u2', '111')`)
	testutil.ExecSQL(t, db, `INSERT INTO operator_profiles (user_id, phone) VALUES ('u1', '555'), ('u2', NULL)`)

	rel := reshape.Relocation{
		From: reshape.ColumnRef{Table: "operator_profiles", Column: "phone"},
		To:   reshape.ColumnRef{Table: "users", Column: "phone"},
		Link: operatorLink,
	}
	mustRun(t, db, rel.Forward())
	mustRun(t, db, rel.Backward())

	// u2's phone lived on users before the move, so it is copied down as well.
	got := column(t, db, "operator_profiles", "phone", "user_id")
	if !slices.Equal(got, []string{"555", "111"}) {
		t.Errorf("operator_profiles.phone = %v, want [555 111]", got)
	}
	testutil.AssertColumnExists(t, db, "users", "phone")
}

func TestRelocationSameTable(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE users (id TEXT PRIMARY KEY, mobile TEXT, phone TEXT)`)
	testutil.ExecSQL(t, db, `INSERT INTO users VALUES ('u1', '1', NULL), ('u2', '2', '9')`)

	rel := reshape.Relocation{
		From: reshape.ColumnRef{Table: "users", Column: "mobile"},
		To:   reshape.ColumnRef{Table: "users", Column: "phone"},
	}
	mustRun(t, db, rel.Forward())

	if got := column(t, db, "users", "phone", "id"); !slices.Equal(got, []string{"1", "9"}) {
		t.Errorf("users.phone = %v, want [1 9]", got)
	}
	testutil.AssertColumnNotExists(t, db, "users", "mobile")
}

func TestRelocationOffLink(t *testing.T) {
	db := setupOperators(t)
	testutil.ExecSQL(t, db, `CREATE TABLE other (id TEXT, phone TEXT)`)

	rel := reshape.Relocation{
		From: reshape.ColumnRef{Table: "other", Column: "phone"},
		To:   reshape.ColumnRef{Table: "users", Column: "phone"},
		Link: operatorLink,
	}
	_, _, err := run(t, db, rel.Forward())
	testutil.AssertErrorCode(t, err, alerr.EInternalError)
}
