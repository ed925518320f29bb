package reshape

import (
	"context"
	"fmt"

	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
)

// Promotion turns a scalar text column into a text array column of the same name.
//
// Forward: "v" becomes [v]; NULL and "" become the empty array.
// Backward: an array becomes its first element; the empty array becomes NULL.
// Elements after the first are lost on the way back.
type Promotion struct {
	Table  string
	Column string
}

func (p Promotion) arrayColumn() string  { return p.Column + "__array" }
func (p Promotion) scalarColumn() string { return p.Column + "__scalar" }

// Forward returns the promotion steps.
func (p Promotion) Forward() []engine.Step {
	tmp := p.arrayColumn()
	done := engine.ColumnIsArray(p.Table, p.Column)

	add := engine.AddColumn(p.Table, dialect.ColumnDef{Name: tmp, Type: dialect.TextArray})
	add.Guard = engine.Any(engine.ColumnPresent(p.Table, tmp), done)

	fill := engine.Transform(
		fmt.Sprintf("promote %s.%s into %s", p.Table, p.Column, tmp),
		engine.Any(
			engine.Not(engine.ColumnPresent(p.Table, tmp)),
			engine.Not(engine.ColumnPresent(p.Table, p.Column)),
		),
		func(ctx context.Context, sc *engine.StepContext) error {
			d := sc.Dialect
			src := sc.Quote(p.Column)
			query := fmt.Sprintf(
				"UPDATE %s SET %s = CASE WHEN %s THEN %s ELSE %s END",
				sc.Quote(p.Table), sc.Quote(tmp),
				emptyCond(src), d.EmptyArray(), d.ArrayFromScalar(src),
			)
			n, err := sc.ExecCount(ctx, query)
			if err != nil {
				return err
			}
			sc.Note("promoted_rows", n)
			return nil
		},
	)

	drop := engine.DropColumn(p.Table, p.Column)
	drop.Guard = engine.Any(engine.Not(engine.ColumnPresent(p.Table, p.Column)), done)

	rename := engine.RenameColumn(p.Table, tmp, p.Column)
	rename.Guard = engine.Not(engine.ColumnPresent(p.Table, tmp))

	return []engine.Step{add, fill, drop, rename}
}

// Backward returns the demotion steps.
func (p Promotion) Backward() []engine.Step {
	tmp := p.scalarColumn()
	scalar := engine.All(
		engine.ColumnPresent(p.Table, p.Column),
		engine.Not(engine.ColumnIsArray(p.Table, p.Column)),
	)

	add := engine.AddColumn(p.Table, dialect.ColumnDef{Name: tmp, Type: dialect.Text})
	add.Guard = engine.Any(engine.ColumnPresent(p.Table, tmp), scalar)

	fill := engine.Transform(
		fmt.Sprintf("demote %s.%s into %s", p.Table, p.Column, tmp),
		engine.Any(
			engine.Not(engine.ColumnPresent(p.Table, tmp)),
			engine.Not(engine.ColumnPresent(p.Table, p.Column)),
		),
		func(ctx context.Context, sc *engine.StepContext) error {
			d := sc.Dialect
			src := sc.Quote(p.Column)
			query := fmt.Sprintf(
				"UPDATE %s SET %s = CASE WHEN %s > 0 THEN %s ELSE NULL END",
				sc.Quote(p.Table), sc.Quote(tmp),
				d.ArrayLength(src), d.FirstElement(src),
			)
			lossy, err := sc.QueryInt(ctx, fmt.Sprintf(
				"SELECT COUNT(*) FROM %s WHERE %s > 1",
				sc.Quote(p.Table), d.ArrayLength(src),
			))
			if err != nil {
				return err
			}
			sc.Note("truncated_arrays", lossy)

			n, err := sc.ExecCount(ctx, query)
			if err != nil {
				return err
			}
			sc.Note("demoted_rows", n)
			return nil
		},
	)

	drop := engine.DropColumn(p.Table, p.Column)
	drop.Guard = engine.Any(engine.Not(engine.ColumnPresent(p.Table, p.Column)), scalar)

	rename := engine.RenameColumn(p.Table, tmp, p.Column)
	rename.Guard = engine.Not(engine.ColumnPresent(p.Table, tmp))

	return []engine.Step{add, fill, drop, rename}
}
