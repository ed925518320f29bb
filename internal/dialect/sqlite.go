package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/strata/internal/alerr"
)

// sqlite implements Dialect for SQLite.
// Text arrays are stored as JSON documents in a column declared JSON.
type sqlite struct{}

// SQLite returns the SQLite dialect implementation.
func SQLite() Dialect {
	return &sqlite{}
}

func (d *sqlite) Name() string {
	return "sqlite"
}

// -----------------------------------------------------------------------------
// Type mappings
// SQLite has dynamic typing with type affinities: TEXT, INTEGER, REAL, BLOB
// -----------------------------------------------------------------------------

func (d *sqlite) ColumnType(t Type) string {
	switch t {
	case Integer, BigInt, Boolean:
		return "INTEGER"
	case TextArray:
		return "JSON"
	case Serial:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return "TEXT"
	}
}

func (d *sqlite) IsArrayType(sqlType string) bool {
	return strings.EqualFold(strings.TrimSpace(sqlType), "JSON")
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

func (d *sqlite) QuoteIdent(name string) string {
	return quoteIdentDoubleQuote(name)
}

func (d *sqlite) Placeholder(index int) string {
	// SQLite uses ? for all placeholders
	return "?"
}

func (d *sqlite) Rebind(query string) string {
	return rebind(query, d.Placeholder)
}

// -----------------------------------------------------------------------------
// Feature support
// -----------------------------------------------------------------------------

func (d *sqlite) SupportsTransactionalDDL() bool {
	return true
}

func (d *sqlite) SupportsAlterConstraint() bool {
	return false
}

// -----------------------------------------------------------------------------
// DDL
// -----------------------------------------------------------------------------

func (d *sqlite) CreateTableSQL(table string, columns []ColumnDef, constraints []string) (string, error) {
	return createTableSQL(d, table, columns, constraints)
}

func (d *sqlite) DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table)
}

func (d *sqlite) AddColumnSQL(table string, col ColumnDef) (string, error) {
	// SQLite cannot add PRIMARY KEY or UNIQUE columns to an existing table.
	if col.PrimaryKey || col.Unique {
		return "", alerr.New(alerr.EUnsupportedDialect, "sqlite cannot add a primary key or unique column").
			WithTable(table).
			WithColumn(col.Name).
			WithHelp("add the column, then create a unique index")
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), columnDefSQL(d, col)), nil
}

func (d *sqlite) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *sqlite) RenameColumnSQL(table, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d *sqlite) CreateIndexSQL(idx IndexDef) string {
	return createIndexSQL(d, idx)
}

func (d *sqlite) DropIndexSQL(name string) string {
	return "DROP INDEX IF EXISTS " + d.QuoteIdent(name)
}

func (d *sqlite) AddConstraintSQL(table, name, _ string) (string, error) {
	return "", alerr.New(alerr.EUnsupportedDialect, "sqlite cannot add constraints to an existing table").
		WithTable(table).
		With("constraint", name)
}

func (d *sqlite) DropConstraintSQL(table, name string) (string, error) {
	return "", alerr.New(alerr.EUnsupportedDialect, "sqlite cannot drop constraints from an existing table").
		WithTable(table).
		With("constraint", name)
}

// -----------------------------------------------------------------------------
// Arrays (JSON1)
// -----------------------------------------------------------------------------

func (d *sqlite) EmptyArray() string {
	return "json_array()"
}

func (d *sqlite) ArrayFromScalar(expr string) string {
	return "json_array(" + expr + ")"
}

func (d *sqlite) ArrayLength(expr string) string {
	return "COALESCE(json_array_length(" + expr + "), 0)"
}

func (d *sqlite) FirstElement(expr string) string {
	return "json_extract(" + expr + ", '$[0]')"
}
