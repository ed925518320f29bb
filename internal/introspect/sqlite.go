package introspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hlop3z/strata/internal/dialect"
)

type sqliteIntrospector struct {
	q       Querier
	dialect dialect.Dialect
}

func (s *sqliteIntrospector) count(ctx context.Context, op, table, column, query string, args ...any) (bool, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, wrapCatalogErr(err, op, table, column)
	}
	return n > 0, nil
}

func (s *sqliteIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	return s.count(ctx, "check table existence", table, "",
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
}

func (s *sqliteIntrospector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	return s.count(ctx, "check column existence", table, column,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
}

func (s *sqliteIntrospector) IndexExists(ctx context.Context, name string) (bool, error) {
	return s.count(ctx, "check index existence", "", "",
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name)
}

// ConstraintExists looks for a named CONSTRAINT clause in the table's DDL,
// or a unique index of that name (how sqlite materializes UNIQUE constraints).
func (s *sqliteIntrospector) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	var ddl sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&ddl)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapCatalogErr(err, "check constraint existence", table, "")
	}

	lower := strings.ToLower(ddl.String)
	for _, form := range []string{
		"constraint " + strings.ToLower(s.dialect.QuoteIdent(name)),
		"constraint " + strings.ToLower(name) + " ",
	} {
		if strings.Contains(lower, form) {
			return true, nil
		}
	}

	return s.count(ctx, "check constraint index", table, "",
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?`, table, name)
}

func (s *sqliteIntrospector) columnInfo(ctx context.Context, table, column string) (typ string, nullable, found bool, err error) {
	// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
	var notNull, pk int
	err = s.q.QueryRowContext(ctx,
		`SELECT type, "notnull", pk FROM pragma_table_info(?) WHERE name = ?`, table, column).
		Scan(&typ, &notNull, &pk)
	if err == sql.ErrNoRows {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, wrapCatalogErr(err, "read column info", table, column)
	}
	return typ, notNull == 0 && pk == 0, true, nil
}

func (s *sqliteIntrospector) ColumnIsNullable(ctx context.Context, table, column string) (bool, error) {
	_, nullable, found, err := s.columnInfo(ctx, table, column)
	if err != nil {
		return false, err
	}
	return columnIsNullableCommon(found, nullable, table, column)
}

func (s *sqliteIntrospector) ColumnType(ctx context.Context, table, column string) (string, bool, error) {
	typ, _, found, err := s.columnInfo(ctx, table, column)
	return typ, found, err
}

func (s *sqliteIntrospector) ColumnIsArray(ctx context.Context, table, column string) (bool, error) {
	return columnIsArrayCommon(ctx, s, s.dialect, table, column)
}

func (s *sqliteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, wrapCatalogErr(err, "list tables", "", "")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapCatalogErr(err, "scan table name", "", "")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapCatalogErr(err, "iterate tables", "", "")
	}
	return filterInternal(tables), nil
}

func (s *sqliteIntrospector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, wrapCatalogErr(err, "list columns", table, "")
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var notNull, pk int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &pk); err != nil {
			return nil, wrapCatalogErr(err, "scan column", table, "")
		}
		c.PrimaryKey = pk > 0
		c.Nullable = notNull == 0 && !c.PrimaryKey
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapCatalogErr(err, "iterate columns", table, "")
	}
	return cols, nil
}
