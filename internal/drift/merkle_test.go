package drift

import (
	"context"
	"strings"
	"testing"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/introspect"
	"github.com/hlop3z/strata/internal/testutil"
)

func usersSchema() Schema {
	return Schema{
		"users": {
			{Name: "id", Type: "TEXT", PrimaryKey: true},
			{Name: "email", Type: "TEXT"},
			{Name: "role", Type: "TEXT", Nullable: true},
		},
	}
}

func TestComputeSchemaHash_Empty(t *testing.T) {
	hash, err := ComputeSchemaHash(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash.Root != emptyHash() {
		t.Errorf("Root = %s, want the empty schema hash", hash.Root)
	}
	if len(hash.Tables) != 0 {
		t.Errorf("expected 0 tables, got %d", len(hash.Tables))
	}
}

func TestComputeSchemaHash_Deterministic(t *testing.T) {
	a, err := ComputeSchemaHash(usersSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Column order does not matter.
	reordered := usersSchema()
	cols := reordered["users"]
	cols[0], cols[2] = cols[2], cols[0]
	b, err := ComputeSchemaHash(reordered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Root != b.Root {
		t.Errorf("roots differ: %s vs %s", a.Root, b.Root)
	}
	if len(a.Tables["users"].Columns) != 3 {
		t.Errorf("expected 3 column hashes, got %d", len(a.Tables["users"].Columns))
	}
}

func TestCompareHashes(t *testing.T) {
	base := usersSchema()

	tests := []struct {
		name    string
		mutate  func(Schema)
		check   func(t *testing.T, c *HashComparison)
		matches bool
	}{
		{
			name:    "identical",
			mutate:  func(Schema) {},
			matches: true,
		},
		{
			name: "missing table",
			mutate: func(s Schema) {
				delete(s, "users")
			},
			check: func(t *testing.T, c *HashComparison) {
				if len(c.MissingTables) != 1 || c.MissingTables[0] != "users" {
					t.Errorf("MissingTables = %v, want [users]", c.MissingTables)
				}
			},
		},
		{
			name: "extra table",
			mutate: func(s Schema) {
				s["preferences"] = []introspect.Column{{Name: "user_id", Type: "TEXT"}}
			},
			check: func(t *testing.T, c *HashComparison) {
				if len(c.ExtraTables) != 1 || c.ExtraTables[0] != "preferences" {
					t.Errorf("ExtraTables = %v, want [preferences]", c.ExtraTables)
				}
			},
		},
		{
			name: "column changes",
			mutate: func(s Schema) {
				s["users"] = []introspect.Column{
					{Name: "id", Type: "TEXT", PrimaryKey: true},
					{Name: "email", Type: "TEXT", Nullable: true},
					{Name: "phone", Type: "TEXT", Nullable: true},
				}
			},
			check: func(t *testing.T, c *HashComparison) {
				diff := c.TableDiffs["users"]
				if diff == nil || !diff.HasDifferences() {
					t.Fatal("expected a users diff")
				}
				if len(diff.MissingColumns) != 1 || diff.MissingColumns[0] != "role" {
					t.Errorf("MissingColumns = %v, want [role]", diff.MissingColumns)
				}
				if len(diff.ExtraColumns) != 1 || diff.ExtraColumns[0] != "phone" {
					t.Errorf("ExtraColumns = %v, want [phone]", diff.ExtraColumns)
				}
				if len(diff.ModifiedColumns) != 1 || diff.ModifiedColumns[0] != "email" {
					t.Errorf("ModifiedColumns = %v, want [email]", diff.ModifiedColumns)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, _ := ComputeSchemaHash(base)
			changed := usersSchema()
			tt.mutate(changed)
			actual, _ := ComputeSchemaHash(changed)

			c := CompareHashes(expected, actual)
			if c.Match != tt.matches {
				t.Fatalf("Match = %v, want %v", c.Match, tt.matches)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestFingerprintLiveSchema(t *testing.T) {
	db := testutil.SetupSQLite(t)
	testutil.ExecSQL(t, db, `CREATE TABLE users (id TEXT PRIMARY KEY, role TEXT)`)
	testutil.ExecSQL(t, db, `CREATE TABLE strata_migrations (version INTEGER PRIMARY KEY)`)

	ctx := context.Background()
	in := introspect.New(db, dialect.SQLite())

	before, err := Fingerprint(ctx, in)
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if _, ok := before.Tables["strata_migrations"]; ok {
		t.Error("bookkeeping tables must not be fingerprinted")
	}

	testutil.ExecSQL(t, db, `ALTER TABLE users ADD COLUMN phone TEXT`)
	c, err := Detect(ctx, in, before)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if c.Match {
		t.Fatal("expected drift after adding a column")
	}
	if out := FormatComparison(c); !strings.Contains(out, "+ phone") {
		t.Errorf("FormatComparison() = %q, want the added column listed", out)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("ShortHash(abc) = %q", got)
	}
	if got := ShortHash(strings.Repeat("f", 64)); len(got) != 12 {
		t.Errorf("ShortHash() length = %d, want 12", len(got))
	}
}
