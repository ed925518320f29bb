package reshape

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
)

// TieBreak decides what happens when sources disagree.
type TieBreak int

const (
	// FirstNonNull takes the first non-empty source in declaration order.
	FirstNonNull TieBreak = iota
	// RequireAgreement fails when two non-empty sources differ.
	RequireAgreement
)

// Retire decides what happens to the sources once merged.
type Retire int

const (
	// RetireClear sets the sources to NULL and keeps the columns.
	RetireClear Retire = iota
	// RetireDrop drops the source columns.
	RetireDrop
)

// Source is one input to a consolidation. Link names the column of
// Table referencing the target's key; it is empty when Table is the
// target table itself.
type Source struct {
	ColumnRef
	Link string
}

// Consolidation merges several source columns into one target column.
type Consolidation struct {
	Target  ColumnRef
	Key     string
	Sources []Source
	Policy  TieBreak
	Retire  Retire
}

// Anomaly is one target row whose sources hold conflicting values.
type Anomaly struct {
	EntityID string
	// Values maps "table.column" to the non-empty value found there.
	Values map[string]string
}

// String renders the anomaly for error context.
func (a Anomaly) String() string {
	parts := make([]string, 0, len(a.Values))
	for src, v := range a.Values {
		parts = append(parts, fmt.Sprintf("%s=%q", src, v))
	}
	slices.Sort(parts)
	return a.EntityID + ": " + strings.Join(parts, ", ")
}

// Anomalies extracts the conflicting rows from an ErrAmbiguousConsolidation error.
func Anomalies(err error) []Anomaly {
	e := alerr.Find(err, alerr.ErrAmbiguousConsolidation)
	if e == nil {
		return nil
	}
	rows, _ := e.GetContext()["rows"].([]Anomaly)
	return rows
}

// Forward returns the consolidation steps: add target, merge, retire sources.
func (c Consolidation) Forward() []engine.Step {
	var merged engine.GuardFunc
	if c.Retire == RetireDrop {
		gone := make([]engine.GuardFunc, 0, len(c.Sources))
		for _, s := range c.Sources {
			gone = append(gone, engine.Not(engine.ColumnPresent(s.Table, s.Column)))
		}
		merged = engine.All(gone...)
	}

	steps := []engine.Step{
		engine.AddColumn(c.Target.Table, dialect.ColumnDef{Name: c.Target.Column, Type: dialect.Text}),
		engine.Transform(fmt.Sprintf("consolidate %s", c.Target), merged, c.merge),
	}

	switch c.Retire {
	case RetireDrop:
		for _, s := range c.Sources {
			steps = append(steps, engine.DropColumn(s.Table, s.Column))
		}
	default:
		steps = append(steps, engine.Transform(fmt.Sprintf("clear sources of %s", c.Target), nil, c.clear))
	}
	return steps
}

// Backward restores the target value into the first source where it is
// empty and drops the target. Values of the other sources are not recovered.
func (c Consolidation) Backward() []engine.Step {
	var steps []engine.Step
	for _, s := range c.Sources {
		steps = append(steps, engine.AddColumn(s.Table, dialect.ColumnDef{Name: s.Column, Type: dialect.Text}))
	}
	if len(c.Sources) > 0 {
		first := c.Sources[0]
		link := Link{Principal: c.Target.Table, Key: c.Key, Satellite: first.Table, Column: first.Link}
		steps = append(steps, engine.Transform(
			fmt.Sprintf("restore %s -> %s", c.Target, first.ColumnRef),
			engine.Not(engine.ColumnPresent(c.Target.Table, c.Target.Column)),
			func(ctx context.Context, sc *engine.StepContext) error {
				return copyColumn(ctx, sc, c.Target, first.ColumnRef, link, true)
			},
		))
	}
	return append(steps, engine.DropColumn(c.Target.Table, c.Target.Column))
}

// liveSources returns the sources whose columns still exist.
func (c Consolidation) liveSources(ctx context.Context, sc *engine.StepContext) ([]Source, error) {
	var live []Source
	for _, s := range c.Sources {
		ok, err := sc.Schema.ColumnExists(ctx, s.Table, s.Column)
		if err != nil {
			return nil, err
		}
		if ok {
			live = append(live, s)
		}
	}
	return live, nil
}

// sourceExpr returns an expression yielding the source value for the
// current target row, NULL when empty.
func (c Consolidation) sourceExpr(sc *engine.StepContext, s Source) string {
	target := sc.Quote(c.Target.Table)
	if s.Table == c.Target.Table {
		return fmt.Sprintf("NULLIF(%s.%s, '')", target, sc.Quote(s.Column))
	}
	col := "s." + sc.Quote(s.Column)
	return fmt.Sprintf("(SELECT NULLIF(%s, '') FROM %s s WHERE s.%s = %s.%s AND %s ORDER BY %s LIMIT 1)",
		col, sc.Quote(s.Table), sc.Quote(s.Link), target, sc.Quote(c.Key), presentCond(col), col)
}

// merge writes COALESCE(sources...) into every empty target where any
// source has a value. Filled targets are kept so a resumed run cannot
// replace a value taken from a source that has since been dropped.
func (c Consolidation) merge(ctx context.Context, sc *engine.StepContext) error {
	live, err := c.liveSources(ctx, sc)
	if err != nil || len(live) == 0 {
		return err
	}

	exprs := make([]string, len(live))
	for i, s := range live {
		exprs[i] = c.sourceExpr(sc, s)
	}
	unset := emptyCond(sc.Quote(c.Target.Table) + "." + sc.Quote(c.Target.Column))

	anomalies, err := c.scan(ctx, sc, live, exprs, unset)
	if err != nil {
		return err
	}
	if len(anomalies) > 0 {
		if c.Policy == RequireAgreement {
			return alerr.New(alerr.ErrAmbiguousConsolidation, "sources disagree and no tie-break is allowed").
				With("target", c.Target.String()).
				With("count", len(anomalies)).
				With("rows", anomalies).
				WithHelp("resolve the listed rows by hand or consolidate with first-non-null")
		}
		for _, a := range anomalies {
			slog.Info("consolidation tie-break applied", "target", c.Target.String(), "row", a.String())
		}
		sc.Note("consolidation_conflicts", int64(len(anomalies)))
	}

	merged := "COALESCE(" + strings.Join(exprs, ", ") + ")"
	n, err := sc.ExecCount(ctx, fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s AND %s IS NOT NULL",
		sc.Quote(c.Target.Table), sc.Quote(c.Target.Column), merged, unset, merged))
	if err != nil {
		return err
	}
	sc.Note("consolidated_rows", n)
	return nil
}

// scan reads the source values of every row matching where and returns
// those that disagree.
func (c Consolidation) scan(ctx context.Context, sc *engine.StepContext, live []Source, exprs []string, where string) ([]Anomaly, error) {
	query := fmt.Sprintf("SELECT %s.%s, %s FROM %s WHERE %s ORDER BY %s.%s",
		sc.Quote(c.Target.Table), sc.Quote(c.Key), strings.Join(exprs, ", "),
		sc.Quote(c.Target.Table), where, sc.Quote(c.Target.Table), sc.Quote(c.Key))
	rows, err := sc.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []Anomaly
	for rows.Next() {
		var id string
		vals := make([]sql.NullString, len(live))
		dest := make([]any, 0, len(live)+1)
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan consolidation row")
		}

		found := make(map[string]string)
		distinct := make(map[string]bool)
		for i, v := range vals {
			if v.Valid && v.String != "" {
				found[live[i].String()] = v.String
				distinct[v.String] = true
			}
		}
		if len(distinct) > 1 {
			anomalies = append(anomalies, Anomaly{EntityID: id, Values: found})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "error iterating consolidation rows")
	}
	return anomalies, nil
}

// clear nulls every live source that still holds a value.
func (c Consolidation) clear(ctx context.Context, sc *engine.StepContext) error {
	live, err := c.liveSources(ctx, sc)
	if err != nil {
		return err
	}
	for _, s := range live {
		if s.Table == c.Target.Table && s.Column == c.Target.Column {
			continue
		}
		col := sc.Quote(s.Column)
		n, err := sc.ExecCount(ctx, fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IS NOT NULL",
			sc.Quote(s.Table), col, col))
		if err != nil {
			return err
		}
		sc.Note("cleared_"+s.Table+"_"+s.Column, n)
	}
	return nil
}
