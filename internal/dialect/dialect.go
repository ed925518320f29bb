// Package dialect provides database-specific SQL generation.
// Each dialect implements logical type mappings, identifier quoting,
// the DDL statements a migration step may issue, and the array
// expressions used by scalar-to-array promotion.
package dialect

import (
	"strings"

	"github.com/hlop3z/strata/internal/alerr"
)

// Dialect defines the interface for database-specific SQL generation.
// Implementations exist for PostgreSQL and SQLite.
type Dialect interface {
	// Name returns the dialect name (postgres, sqlite).
	Name() string

	TypeMapper
	SQLFormatter
	FeatureDetector
	DDLGenerator
	ArrayExpressions
}

// TypeMapper maps logical column types to SQL types.
type TypeMapper interface {
	// ColumnType returns the SQL type for a logical type.
	ColumnType(t Type) string

	// IsArrayType reports whether a catalog type name denotes the dialect's text array.
	// PostgreSQL: ARRAY / _text / text[]
	// SQLite: JSON (declared type of promoted columns)
	IsArrayType(sqlType string) bool
}

// SQLFormatter handles identifier quoting and parameter placeholders.
type SQLFormatter interface {
	// QuoteIdent quotes an identifier (table/column name) for the dialect.
	// PostgreSQL/SQLite: "name"
	QuoteIdent(name string) string

	// Placeholder returns a parameter placeholder for the given index (1-based).
	// PostgreSQL: $1, $2, $3, ...
	// SQLite: ?, ?, ?, ...
	Placeholder(index int) string

	// Rebind rewrites ? placeholders into the dialect's placeholder style.
	Rebind(query string) string
}

// FeatureDetector reports engine capabilities the runner must branch on.
type FeatureDetector interface {
	// SupportsTransactionalDDL returns true if DDL can be wrapped in transactions.
	// PostgreSQL: true
	// SQLite: true
	SupportsTransactionalDDL() bool

	// SupportsAlterConstraint returns true if constraints can be added to an existing table.
	// PostgreSQL: true
	// SQLite: false (constraints are only declared in CREATE TABLE)
	SupportsAlterConstraint() bool
}

// DDLGenerator generates the statements issued by structural steps.
type DDLGenerator interface {
	CreateTableSQL(table string, columns []ColumnDef, constraints []string) (string, error)
	DropTableSQL(table string) string
	AddColumnSQL(table string, col ColumnDef) (string, error)
	DropColumnSQL(table, column string) string
	RenameColumnSQL(table, from, to string) string
	CreateIndexSQL(idx IndexDef) string
	DropIndexSQL(name string) string
	AddConstraintSQL(table, name, definition string) (string, error)
	DropConstraintSQL(table, name string) (string, error)
}

// ArrayExpressions builds the SQL expressions for text arrays.
type ArrayExpressions interface {
	// EmptyArray returns a literal empty text array.
	EmptyArray() string

	// ArrayFromScalar wraps a scalar expression into a one-element array.
	ArrayFromScalar(expr string) string

	// ArrayLength returns an expression evaluating to the number of elements.
	ArrayLength(expr string) string

	// FirstElement returns an expression evaluating to the first element.
	FirstElement(expr string) string
}

// Type is a logical column type resolved per dialect.
type Type int

const (
	// Text is an unbounded string.
	Text Type = iota
	// Integer is a 32-bit integer.
	Integer
	// BigInt is a 64-bit integer.
	BigInt
	// Boolean is a true/false flag.
	Boolean
	// Timestamp is a point in time.
	Timestamp
	// TextArray is an ordered list of strings.
	TextArray
	// Serial is an auto-incrementing integer primary key.
	Serial
)

// String returns the logical type name.
func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case BigInt:
		return "bigint"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	case TextArray:
		return "text_array"
	case Serial:
		return "serial"
	default:
		return "unknown"
	}
}

// ColumnDef describes a column for CREATE TABLE and ADD COLUMN.
type ColumnDef struct {
	Name       string
	Type       Type
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    string // raw SQL default expression
	References string // "table(column)"
	OnDelete   string // CASCADE, SET NULL, ...
}

// IndexDef describes an index.
type IndexDef struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Get returns the dialect registered under name.
func Get(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return Postgres(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	default:
		return nil, alerr.New(alerr.EUnsupportedDialect, "unsupported dialect").
			With("dialect", name).
			WithHelp("use postgres or sqlite")
	}
}

// FromURL infers the dialect from a database URL.
// postgres:// and postgresql:// map to postgres; everything else is treated as a sqlite path.
func FromURL(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres()
	}
	return SQLite()
}

// DriverName returns the database/sql driver name for a dialect.
func DriverName(d Dialect) string {
	if d.Name() == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
