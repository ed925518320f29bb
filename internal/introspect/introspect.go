// Package introspect answers structural questions about the live database.
// Every call is a fresh catalog read: a prior step in the same unit may have
// just changed the answer, so nothing is cached.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
)

// InternalTablePrefix marks strata's own bookkeeping tables.
const InternalTablePrefix = "strata_"

// Querier is the subset of *sql.DB and *sql.Tx used for catalog reads and step execution.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspector queries database catalogs to discover schema information.
type Introspector interface {
	// TableExists checks if a table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// ColumnExists checks if a column exists. A missing table yields false.
	ColumnExists(ctx context.Context, table, column string) (bool, error)

	// IndexExists checks if an index exists in the current schema.
	IndexExists(ctx context.Context, name string) (bool, error)

	// ConstraintExists checks if a named constraint exists on table.
	ConstraintExists(ctx context.Context, table, name string) (bool, error)

	// ColumnIsNullable reports whether column accepts NULL.
	// Asking about a missing column is an introspection error.
	ColumnIsNullable(ctx context.Context, table, column string) (bool, error)

	// ColumnType returns the catalog type name of a column and whether it exists.
	ColumnType(ctx context.Context, table, column string) (string, bool, error)

	// ColumnIsArray reports whether column exists and holds a text array.
	ColumnIsArray(ctx context.Context, table, column string) (bool, error)

	// ListTables returns user tables sorted by name, excluding strata bookkeeping tables.
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns a table's columns in declaration order.
	ListColumns(ctx context.Context, table string) ([]Column, error)
}

// Column is column metadata from the database catalog.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// New creates an Introspector for the given dialect bound to q.
// Returns nil if the dialect is not supported.
func New(q Querier, d dialect.Dialect) Introspector {
	switch d.Name() {
	case "postgres":
		return &postgresIntrospector{q: q, dialect: d}
	case "sqlite":
		return &sqliteIntrospector{q: q, dialect: d}
	default:
		return nil
	}
}

// columnIsArrayCommon is the shared implementation of ColumnIsArray.
func columnIsArrayCommon(ctx context.Context, in Introspector, d dialect.Dialect, table, column string) (bool, error) {
	typ, ok, err := in.ColumnType(ctx, table, column)
	if err != nil || !ok {
		return false, err
	}
	return d.IsArrayType(typ), nil
}

// columnIsNullableCommon is the shared implementation of ColumnIsNullable.
func columnIsNullableCommon(found, nullable bool, table, column string) (bool, error) {
	if !found {
		return false, alerr.New(alerr.ErrIntrospection, "column not found").
			WithTable(table).
			WithColumn(column)
	}
	return nullable, nil
}

// filterInternal drops strata bookkeeping tables from a table list.
func filterInternal(tables []string) []string {
	out := tables[:0]
	for _, t := range tables {
		if strings.HasPrefix(t, InternalTablePrefix) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// wrapCatalogErr classifies a failed catalog query.
func wrapCatalogErr(err error, op, table, column string) error {
	e := alerr.WrapIntrospection(err, op, table, column)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		e.With("pg_code", string(pqErr.Code))
		if pqErr.Code == "42501" {
			e.WithHelp("the migration role needs read access to information_schema and pg_catalog")
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e.WithNote("the step is treated as unverified and the unit is aborted")
	}
	return e
}
