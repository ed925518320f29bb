package engine

import (
	"context"
	"database/sql"
	"fmt"
	"maps"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/introspect"
)

// Kind classifies a step.
type Kind int

const (
	KindCreateTable Kind = iota
	KindDropTable
	KindAddColumn
	KindDropColumn
	KindRenameColumn
	KindCreateIndex
	KindDropIndex
	KindAddConstraint
	KindDropConstraint
	KindDataTransform
)

var kindNames = [...]string{
	KindCreateTable:    "create_table",
	KindDropTable:      "drop_table",
	KindAddColumn:      "add_column",
	KindDropColumn:     "drop_column",
	KindRenameColumn:   "rename_column",
	KindCreateIndex:    "create_index",
	KindDropIndex:      "drop_index",
	KindAddConstraint:  "add_constraint",
	KindDropConstraint: "drop_constraint",
	KindDataTransform:  "data_transform",
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// GuardFunc reports whether a step's effect is already present in the database.
// It must only read.
type GuardFunc func(ctx context.Context, sc *StepContext) (bool, error)

// ActionFunc performs a step's effect.
type ActionFunc func(ctx context.Context, sc *StepContext) error

// Step is one guarded action within a unit.
// A nil Guard marks an action that is safe to repeat on its own.
type Step struct {
	Kind   Kind
	Name   string
	Guard  GuardFunc
	Action ActionFunc
}

// StepContext is what guards and actions see: the querier the unit runs on
// (a transaction or the bare connection), the dialect, an introspector bound
// to the same querier, and a counter map for anomalies worth reporting.
type StepContext struct {
	DB      introspect.Querier
	Dialect dialect.Dialect
	Schema  introspect.Introspector

	notes map[string]int64
}

// NewStepContext binds a step context to q.
func NewStepContext(q introspect.Querier, d dialect.Dialect) *StepContext {
	return &StepContext{
		DB:      q,
		Dialect: d,
		Schema:  introspect.New(q, d),
		notes:   make(map[string]int64),
	}
}

// Quote quotes an identifier for the dialect.
func (sc *StepContext) Quote(name string) string {
	return sc.Dialect.QuoteIdent(name)
}

// Exec runs a statement written with ? placeholders.
func (sc *StepContext) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = sc.Dialect.Rebind(query)
	res, err := sc.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "statement failed").WithSQL(query)
	}
	return res, nil
}

// ExecCount runs a statement and returns the number of affected rows.
func (sc *StepContext) ExecCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := sc.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, alerr.Wrap(alerr.ErrSQLExecution, err, "rows affected unavailable")
	}
	return n, nil
}

// Query runs a query written with ? placeholders.
func (sc *StepContext) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = sc.Dialect.Rebind(query)
	rows, err := sc.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "query failed").WithSQL(query)
	}
	return rows, nil
}

// QueryInt runs a single-value integer query.
func (sc *StepContext) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	query = sc.Dialect.Rebind(query)
	var n int64
	if err := sc.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, alerr.Wrap(alerr.ErrSQLExecution, err, "query failed").WithSQL(query)
	}
	return n, nil
}

// Note adds n to the counter key. Zero increments are dropped.
func (sc *StepContext) Note(key string, n int64) {
	if n == 0 {
		return
	}
	sc.notes[key] += n
}

// Notes returns a copy of the recorded counters.
func (sc *StepContext) Notes() map[string]int64 {
	return maps.Clone(sc.notes)
}

// -----------------------------------------------------------------------------
// Guards
// -----------------------------------------------------------------------------

// TablePresent is applied when table exists.
func TablePresent(table string) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		return sc.Schema.TableExists(ctx, table)
	}
}

// ColumnPresent is applied when table.column exists.
func ColumnPresent(table, column string) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		return sc.Schema.ColumnExists(ctx, table, column)
	}
}

// ColumnIsArray is applied when table.column exists with the dialect's array type.
func ColumnIsArray(table, column string) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		return sc.Schema.ColumnIsArray(ctx, table, column)
	}
}

// IndexPresent is applied when the named index exists.
func IndexPresent(name string) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		return sc.Schema.IndexExists(ctx, name)
	}
}

// ConstraintPresent is applied when the named constraint exists on table.
func ConstraintPresent(table, name string) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		return sc.Schema.ConstraintExists(ctx, table, name)
	}
}

// Not inverts a guard.
func Not(g GuardFunc) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		ok, err := g(ctx, sc)
		return !ok, err
	}
}

// Any is applied when at least one guard is applied.
func Any(gs ...GuardFunc) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		for _, g := range gs {
			ok, err := g(ctx, sc)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
}

// All is applied when every guard is applied.
func All(gs ...GuardFunc) GuardFunc {
	return func(ctx context.Context, sc *StepContext) (bool, error) {
		for _, g := range gs {
			ok, err := g(ctx, sc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// -----------------------------------------------------------------------------
// Structural steps
// -----------------------------------------------------------------------------

// CreateTable creates table unless it already exists.
func CreateTable(table string, columns []dialect.ColumnDef, constraints ...string) Step {
	return Step{
		Kind:  KindCreateTable,
		Name:  "create_table " + table,
		Guard: TablePresent(table),
		Action: func(ctx context.Context, sc *StepContext) error {
			stmt, err := sc.Dialect.CreateTableSQL(table, columns, constraints)
			if err != nil {
				return err
			}
			_, err = sc.Exec(ctx, stmt)
			return err
		},
	}
}

// DropTable drops table unless it is already gone.
func DropTable(table string) Step {
	return Step{
		Kind:  KindDropTable,
		Name:  "drop_table " + table,
		Guard: Not(TablePresent(table)),
		Action: func(ctx context.Context, sc *StepContext) error {
			_, err := sc.Exec(ctx, sc.Dialect.DropTableSQL(table))
			return err
		},
	}
}

// AddColumn adds col to table unless the column exists.
func AddColumn(table string, col dialect.ColumnDef) Step {
	return Step{
		Kind:  KindAddColumn,
		Name:  fmt.Sprintf("add_column %s.%s", table, col.Name),
		Guard: ColumnPresent(table, col.Name),
		Action: func(ctx context.Context, sc *StepContext) error {
			stmt, err := sc.Dialect.AddColumnSQL(table, col)
			if err != nil {
				return err
			}
			_, err = sc.Exec(ctx, stmt)
			return err
		},
	}
}

// DropColumn drops table.column unless it is already gone.
func DropColumn(table, column string) Step {
	return Step{
		Kind:  KindDropColumn,
		Name:  fmt.Sprintf("drop_column %s.%s", table, column),
		Guard: Not(ColumnPresent(table, column)),
		Action: func(ctx context.Context, sc *StepContext) error {
			_, err := sc.Exec(ctx, sc.Dialect.DropColumnSQL(table, column))
			return err
		},
	}
}

// RenameColumn renames table.from to table.to.
// It is applied once from is gone and to exists. If neither exists the
// action runs and fails loudly.
func RenameColumn(table, from, to string) Step {
	return Step{
		Kind:  KindRenameColumn,
		Name:  fmt.Sprintf("rename_column %s.%s -> %s", table, from, to),
		Guard: All(Not(ColumnPresent(table, from)), ColumnPresent(table, to)),
		Action: func(ctx context.Context, sc *StepContext) error {
			_, err := sc.Exec(ctx, sc.Dialect.RenameColumnSQL(table, from, to))
			return err
		},
	}
}

// CreateIndex creates idx unless an index with that name exists.
func CreateIndex(idx dialect.IndexDef) Step {
	return Step{
		Kind:  KindCreateIndex,
		Name:  "create_index " + idx.Name,
		Guard: IndexPresent(idx.Name),
		Action: func(ctx context.Context, sc *StepContext) error {
			_, err := sc.Exec(ctx, sc.Dialect.CreateIndexSQL(idx))
			return err
		},
	}
}

// DropIndex drops the named index unless it is already gone.
func DropIndex(name string) Step {
	return Step{
		Kind:  KindDropIndex,
		Name:  "drop_index " + name,
		Guard: Not(IndexPresent(name)),
		Action: func(ctx context.Context, sc *StepContext) error {
			_, err := sc.Exec(ctx, sc.Dialect.DropIndexSQL(name))
			return err
		},
	}
}

// AddConstraint adds a named table constraint unless it exists.
// definition is the raw constraint body, e.g. "CHECK (email <> ”)".
func AddConstraint(table, name, definition string) Step {
	return Step{
		Kind:  KindAddConstraint,
		Name:  fmt.Sprintf("add_constraint %s.%s", table, name),
		Guard: ConstraintPresent(table, name),
		Action: func(ctx context.Context, sc *StepContext) error {
			if err := alterConstraintSupported(sc, table, name); err != nil {
				return err
			}
			stmt, err := sc.Dialect.AddConstraintSQL(table, name, definition)
			if err != nil {
				return err
			}
			_, err = sc.Exec(ctx, stmt)
			return err
		},
	}
}

// DropConstraint drops a named table constraint unless it is already gone.
func DropConstraint(table, name string) Step {
	return Step{
		Kind:  KindDropConstraint,
		Name:  fmt.Sprintf("drop_constraint %s.%s", table, name),
		Guard: Not(ConstraintPresent(table, name)),
		Action: func(ctx context.Context, sc *StepContext) error {
			if err := alterConstraintSupported(sc, table, name); err != nil {
				return err
			}
			stmt, err := sc.Dialect.DropConstraintSQL(table, name)
			if err != nil {
				return err
			}
			_, err = sc.Exec(ctx, stmt)
			return err
		},
	}
}

// alterConstraintSupported fails when the dialect cannot change constraints
// of an existing table. Such constraints belong in CreateTable.
func alterConstraintSupported(sc *StepContext, table, name string) error {
	if sc.Dialect.SupportsAlterConstraint() {
		return nil
	}
	return alerr.New(alerr.EUnsupportedDialect, "dialect cannot alter constraints of an existing table").
		With("dialect", sc.Dialect.Name()).
		WithTable(table).
		With("constraint", name).
		WithHelp("declare the constraint when the table is created")
}

// Transform is a data step. guard may be nil when action is idempotent by construction.
func Transform(name string, guard GuardFunc, action ActionFunc) Step {
	return Step{
		Kind:   KindDataTransform,
		Name:   name,
		Guard:  guard,
		Action: action,
	}
}
