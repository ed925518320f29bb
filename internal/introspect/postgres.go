package introspect

import (
	"context"
	"database/sql"

	"github.com/hlop3z/strata/internal/dialect"
)

type postgresIntrospector struct {
	q       Querier
	dialect dialect.Dialect
}

func (p *postgresIntrospector) exists(ctx context.Context, op, table, column, query string, args ...any) (bool, error) {
	var exists bool
	if err := p.q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, wrapCatalogErr(err, op, table, column)
	}
	return exists, nil
}

func (p *postgresIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	return p.exists(ctx, "check table existence", table, "", `
		SELECT EXISTS (
			SELECT 1 FROM pg_tables
			WHERE schemaname = current_schema() AND tablename = $1
		)
	`, table)
}

func (p *postgresIntrospector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	return p.exists(ctx, "check column existence", table, column, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`, table, column)
}

func (p *postgresIntrospector) IndexExists(ctx context.Context, name string) (bool, error) {
	return p.exists(ctx, "check index existence", "", "", `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema() AND indexname = $1
		)
	`, name)
}

func (p *postgresIntrospector) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	return p.exists(ctx, "check constraint existence", table, "", `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_schema = current_schema() AND table_name = $1 AND constraint_name = $2
		)
	`, table, name)
}

func (p *postgresIntrospector) columnInfo(ctx context.Context, table, column string) (typ string, nullable, found bool, err error) {
	var isNullable string
	err = p.q.QueryRowContext(ctx, `
		SELECT data_type, is_nullable FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
	`, table, column).Scan(&typ, &isNullable)
	if err == sql.ErrNoRows {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, wrapCatalogErr(err, "read column info", table, column)
	}
	return typ, isNullable == "YES", true, nil
}

func (p *postgresIntrospector) ColumnIsNullable(ctx context.Context, table, column string) (bool, error) {
	_, nullable, found, err := p.columnInfo(ctx, table, column)
	if err != nil {
		return false, err
	}
	return columnIsNullableCommon(found, nullable, table, column)
}

func (p *postgresIntrospector) ColumnType(ctx context.Context, table, column string) (string, bool, error) {
	typ, _, found, err := p.columnInfo(ctx, table, column)
	return typ, found, err
}

func (p *postgresIntrospector) ColumnIsArray(ctx context.Context, table, column string) (bool, error) {
	return columnIsArrayCommon(ctx, p, p.dialect, table, column)
}

func (p *postgresIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema()
		ORDER BY tablename
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

func (p *postgresIntrospector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable,
		       EXISTS (
		           SELECT 1 FROM information_schema.key_column_usage k
		           JOIN information_schema.table_constraints tc
		             ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND k.table_schema = c.table_schema
		             AND k.table_name = c.table_name
		             AND k.column_name = c.column_name
		       )
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position
	`, table)
	if err != nil {
		return nil, wrapCatalogErr(err, "list columns", table, "")
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var isNullable string
		if err := rows.Scan(&c.Name, &c.Type, &isNullable, &c.PrimaryKey); err != nil {
			return nil, wrapCatalogErr(err, "scan column", table, "")
		}
		c.Nullable = isNullable == "YES"
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapCatalogErr(err, "iterate columns", table, "")
	}
	return cols, nil
}
