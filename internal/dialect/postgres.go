package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// postgres implements Dialect for PostgreSQL.
type postgres struct{}

// Postgres returns the PostgreSQL dialect implementation.
func Postgres() Dialect {
	return &postgres{}
}

func (d *postgres) Name() string {
	return "postgres"
}

// -----------------------------------------------------------------------------
// Type mappings
// -----------------------------------------------------------------------------

func (d *postgres) ColumnType(t Type) string {
	switch t {
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMPTZ"
	case TextArray:
		return "TEXT[]"
	case Serial:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "TEXT"
	}
}

func (d *postgres) IsArrayType(sqlType string) bool {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	return t == "array" || strings.HasPrefix(t, "_") || strings.HasSuffix(t, "[]")
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

func (d *postgres) QuoteIdent(name string) string {
	return quoteIdentDoubleQuote(name)
}

func (d *postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *postgres) Rebind(query string) string {
	return rebind(query, d.Placeholder)
}

// -----------------------------------------------------------------------------
// Feature support
// -----------------------------------------------------------------------------

func (d *postgres) SupportsTransactionalDDL() bool {
	return true
}

func (d *postgres) SupportsAlterConstraint() bool {
	return true
}

// -----------------------------------------------------------------------------
// DDL
// -----------------------------------------------------------------------------

func (d *postgres) CreateTableSQL(table string, columns []ColumnDef, constraints []string) (string, error) {
	return createTableSQL(d, table, columns, constraints)
}

func (d *postgres) DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table) + " CASCADE"
}

func (d *postgres) AddColumnSQL(table string, col ColumnDef) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), columnDefSQL(d, col)), nil
}

func (d *postgres) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *postgres) RenameColumnSQL(table, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d *postgres) CreateIndexSQL(idx IndexDef) string {
	return createIndexSQL(d, idx)
}

func (d *postgres) DropIndexSQL(name string) string {
	return "DROP INDEX IF EXISTS " + d.QuoteIdent(name)
}

func (d *postgres) AddConstraintSQL(table, name, definition string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		d.QuoteIdent(table), d.QuoteIdent(name), definition), nil
}

func (d *postgres) DropConstraintSQL(table, name string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
		d.QuoteIdent(table), d.QuoteIdent(name)), nil
}

// -----------------------------------------------------------------------------
// Arrays
// -----------------------------------------------------------------------------

func (d *postgres) EmptyArray() string {
	return "ARRAY[]::TEXT[]"
}

func (d *postgres) ArrayFromScalar(expr string) string {
	return "ARRAY[" + expr + "]::TEXT[]"
}

func (d *postgres) ArrayLength(expr string) string {
	return "COALESCE(cardinality(" + expr + "), 0)"
}

func (d *postgres) FirstElement(expr string) string {
	return "(" + expr + ")[1]"
}
