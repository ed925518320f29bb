package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cbergoon/merkletree"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/introspect"
)

// Schema is a catalog snapshot: table name -> columns in declaration order.
type Schema map[string][]introspect.Column

// TableNames returns the snapshot's tables sorted by name.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaHash represents the merkle root hash of a schema.
type SchemaHash struct {
	Root   string                // Root hash of entire schema
	Tables map[string]*TableHash // Individual table hashes for drill-down
}

// TableHash represents the merkle hash of a single table.
type TableHash struct {
	Name    string            // Table name
	Hash    string            // Hash of entire table structure
	Columns map[string]string // Column name -> hash
}

// tableContent implements merkletree.Content for table-level hashing.
type tableContent struct {
	name string
	hash string
}

func (t tableContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(t.name + ":" + t.hash))
	return h[:], nil
}

func (t tableContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(tableContent)
	if !ok {
		return false, nil
	}
	return t.name == o.name && t.hash == o.hash, nil
}

// ComputeSchemaHash computes the merkle tree hash for a schema.
// The hash is hierarchical: schema -> tables -> columns.
func ComputeSchemaHash(schema Schema) (*SchemaHash, error) {
	result := &SchemaHash{
		Tables: make(map[string]*TableHash),
	}
	if len(schema) == 0 {
		result.Root = emptyHash()
		return result, nil
	}

	var contents []merkletree.Content
	for _, name := range schema.TableNames() {
		th := computeTableHash(name, schema[name])
		result.Tables[name] = th
		contents = append(contents, tableContent{name: name, hash: th.Hash})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrIntrospection, err, "failed to build merkle tree")
	}

	result.Root = hex.EncodeToString(tree.MerkleRoot())
	return result, nil
}

// computeTableHash hashes a table's columns. Column order is ignored:
// SQLite appends re-added columns at the end.
func computeTableHash(name string, columns []introspect.Column) *TableHash {
	result := &TableHash{
		Name:    name,
		Columns: make(map[string]string, len(columns)),
	}

	names := make([]string, 0, len(columns))
	for _, col := range columns {
		result.Columns[col.Name] = computeColumnHash(col)
		names = append(names, col.Name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ":" + result.Columns[n]
	}
	result.Hash = hashString(fmt.Sprintf("table:%s|columns:[%s]", name, strings.Join(parts, ",")))
	return result
}

// computeColumnHash computes a deterministic hash for a column.
func computeColumnHash(col introspect.Column) string {
	return hashString(fmt.Sprintf("name:%s|type:%s|nullable:%v|pk:%v",
		col.Name,
		strings.ToLower(col.Type),
		col.Nullable,
		col.PrimaryKey,
	))
}

// hashString computes SHA256 hash of a string and returns hex encoding.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// emptyHash returns a consistent hash for empty schemas.
func emptyHash() string {
	return hashString("empty_schema")
}

// CompareHashes compares two schema hashes and returns differences.
func CompareHashes(expected, actual *SchemaHash) *HashComparison {
	result := &HashComparison{
		Match:        expected.Root == actual.Root,
		ExpectedRoot: expected.Root,
		ActualRoot:   actual.Root,
		TableDiffs:   make(map[string]*TableDiff),
	}
	if result.Match {
		return result
	}

	for name, exp := range expected.Tables {
		act, ok := actual.Tables[name]
		if !ok {
			result.MissingTables = append(result.MissingTables, name)
			continue
		}
		if exp.Hash != act.Hash {
			result.TableDiffs[name] = compareTableHashes(exp, act)
		}
	}
	for name := range actual.Tables {
		if _, ok := expected.Tables[name]; !ok {
			result.ExtraTables = append(result.ExtraTables, name)
		}
	}
	sort.Strings(result.MissingTables)
	sort.Strings(result.ExtraTables)
	return result
}

// HashComparison represents the result of comparing two schema hashes.
type HashComparison struct {
	Match         bool                  // True if schemas are identical
	ExpectedRoot  string                // Expected schema root hash
	ActualRoot    string                // Actual schema root hash
	TableDiffs    map[string]*TableDiff // Tables with differences
	MissingTables []string              // Tables missing from actual
	ExtraTables   []string              // Extra tables in actual
}

// TableDiff represents differences within a table.
type TableDiff struct {
	Name            string   // Table name
	MissingColumns  []string // Columns missing from actual
	ExtraColumns    []string // Extra columns in actual
	ModifiedColumns []string // Columns with different definitions
}

// HasDifferences returns true if the table has any differences.
func (d *TableDiff) HasDifferences() bool {
	return len(d.MissingColumns) > 0 ||
		len(d.ExtraColumns) > 0 ||
		len(d.ModifiedColumns) > 0
}

// compareTableHashes compares two table hashes and returns differences.
func compareTableHashes(expected, actual *TableHash) *TableDiff {
	diff := &TableDiff{Name: expected.Name}

	for name, hash := range expected.Columns {
		actualHash, exists := actual.Columns[name]
		if !exists {
			diff.MissingColumns = append(diff.MissingColumns, name)
		} else if hash != actualHash {
			diff.ModifiedColumns = append(diff.ModifiedColumns, name)
		}
	}
	for name := range actual.Columns {
		if _, exists := expected.Columns[name]; !exists {
			diff.ExtraColumns = append(diff.ExtraColumns, name)
		}
	}

	sort.Strings(diff.MissingColumns)
	sort.Strings(diff.ExtraColumns)
	sort.Strings(diff.ModifiedColumns)
	return diff
}
