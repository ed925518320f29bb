package reshape_test

import (
	"context"
	"slices"
	"testing"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/introspect"
	"github.com/hlop3z/strata/internal/reshape"
	"github.com/hlop3z/strata/internal/testutil"
)

var propertyTypes = reshape.Promotion{Table: "preferences", Column: "property_type"}

func TestPromotionValues(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE preferences (user_id TEXT PRIMARY KEY, property_type TEXT)`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences VALUES ('a', 'house'), ('b', ''), ('c', NULL)`)

	_, sc := mustRun(t, db, propertyTypes.Forward())

	got := column(t, db, "preferences", "property_type", "user_id")
	want := []string{`["house"]`, `[]`, `[]`}
	if !slices.Equal(got, want) {
		t.Errorf("property_type = %v, want %v", got, want)
	}
	if sc.Notes()["promoted_rows"] != 3 {
		t.Errorf("promoted_rows = %d, want 3", sc.Notes()["promoted_rows"])
	}

	isArray, err := introspect.New(db, dialect.SQLite()).ColumnIsArray(context.Background(), "preferences", "property_type")
	if err != nil {
		t.Fatalf("ColumnIsArray() error = %v", err)
	}
	if !isArray {
		t.Error("property_type should be an array column")
	}
	testutil.AssertColumnNotExists(t, db, "preferences", "property_type__array")
}

func TestPromotionIsIdempotent(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE preferences (user_id TEXT PRIMARY KEY, property_type TEXT)`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences VALUES ('a', 'flat')`)

	mustRun(t, db, propertyTypes.Forward())
	exec, _ := mustRun(t, db, propertyTypes.Forward())

	if exec.Ran() != 0 {
		t.Errorf("second pass ran %d steps, want 0", exec.Ran())
	}
	if got := column(t, db, "preferences", "property_type", "user_id"); !slices.Equal(got, []string{`["flat"]`}) {
		t.Errorf("property_type = %v", got)
	}
}

func TestPromotionResumesFromAnyStep(t *testing.T) {
	steps := propertyTypes.Forward()

	for cut := 1; cut < len(steps); cut++ {
		t.Run(steps[cut-1].Name, func(t *testing.T) {
			db := testutil.SetupSQLite(t)
			testutil.ExecSQL(t, db, `CREATE TABLE preferences (user_id TEXT PRIMARY KEY, property_type TEXT)`)
			testutil.ExecSQL(t, db, `INSERT INTO preferences VALUES ('a', 'house'), ('b', NULL)`)

			mustRun(t, db, steps[:cut])
			mustRun(t, db, propertyTypes.Forward())

			got := column(t, db, "preferences", "property_type", "user_id")
			if !slices.Equal(got, []string{`["house"]`, `[]`}) {
				t.Errorf("property_type = %v", got)
			}
		})
	}
}

func TestDemotion(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE preferences (user_id TEXT PRIMARY KEY, property_type JSON)`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences VALUES ('a', '["house","flat"]'), ('b', '[]'), ('c', NULL)`)

	_, sc := mustRun(t, db, propertyTypes.Backward())

	got := column(t, db, "preferences", "property_type", "user_id")
	want := []string{"house", "<nil>", "<nil>"}
	if !slices.Equal(got, want) {
		t.Errorf("property_type = %v, want %v", got, want)
	}
	if sc.Notes()["truncated_arrays"] != 1 {
		t.Errorf("truncated_arrays = %d, want 1", sc.Notes()["truncated_arrays"])
	}

	exec, _ := mustRun(t, db, propertyTypes.Backward())
	if exec.Ran() != 0 {
		t.Errorf("second demotion ran %d steps, want 0", exec.Ran())
	}
}

func TestPromotionRoundTrip(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE preferences (user_id TEXT PRIMARY KEY, property_type TEXT)`)
	testutil.ExecSQL(t, db, `INSERT INTO preferences VALUES ('a', 'house'), ('b', ''), ('c', NULL)`)

	mustRun(t, db, propertyTypes.Forward())
	mustRun(t, db, propertyTypes.Backward())

	// Empty strings come back as NULL: both promote to the empty array.
	got := column(t, db, "preferences", "property_type", "user_id")
	want := []string{"house", "<nil>", "<nil>"}
	if !slices.Equal(got, want) {
		t.Errorf("property_type = %v, want %v", got, want)
	}
}
