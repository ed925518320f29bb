package reshape

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
)

// Relocation moves a column's values from one table to another along Link.
// From and To must sit on the two ends of the link, or on the same table.
//
// Values are copied only into empty destinations; a destination that
// already holds a different value keeps it and the conflict is counted.
// A source value with no destination row is uncovered: the copy step fails
// unless AllowUncovered is set, so nothing is dropped silently.
type Relocation struct {
	From ColumnRef
	To   ColumnRef
	Link Link

	// Type is the logical type used when a column is (re)created. Defaults to Text.
	Type dialect.Type

	// AllowUncovered lets the source be dropped while some values have nowhere to go.
	AllowUncovered bool

	// DropDestinationOnRevert drops To when reverting. Leave false when To
	// existed before the relocation.
	DropDestinationOnRevert bool
}

// Forward returns the relocation steps: add destination, copy, drop source.
func (r Relocation) Forward() []engine.Step {
	return []engine.Step{
		engine.AddColumn(r.To.Table, dialect.ColumnDef{Name: r.To.Column, Type: r.Type}),
		engine.Transform(
			fmt.Sprintf("relocate %s -> %s", r.From, r.To),
			engine.Not(engine.ColumnPresent(r.From.Table, r.From.Column)),
			func(ctx context.Context, sc *engine.StepContext) error {
				return copyColumn(ctx, sc, r.From, r.To, r.Link, r.AllowUncovered)
			},
		),
		engine.DropColumn(r.From.Table, r.From.Column),
	}
}

// Backward re-creates the source and copies values back into rows where it is empty.
// Values that had no source row to return to are lost.
func (r Relocation) Backward() []engine.Step {
	steps := []engine.Step{
		engine.AddColumn(r.From.Table, dialect.ColumnDef{Name: r.From.Column, Type: r.Type}),
		engine.Transform(
			fmt.Sprintf("restore %s -> %s", r.To, r.From),
			engine.Not(engine.ColumnPresent(r.To.Table, r.To.Column)),
			func(ctx context.Context, sc *engine.StepContext) error {
				return copyColumn(ctx, sc, r.To, r.From, r.Link, true)
			},
		),
	}
	if r.DropDestinationOnRevert {
		steps = append(steps, engine.DropColumn(r.To.Table, r.To.Column))
	}
	return steps
}

// copySQL holds the statements moving src into dst along a link.
type copySQL struct {
	update    string // fill empty destinations
	uncovered string // ids of source rows whose value has no destination row
	conflicts string // count of destinations holding a different value
}

// buildCopySQL picks the statement shape from which end of the link each column sits on.
func buildCopySQL(sc *engine.StepContext, src, dst ColumnRef, link Link) (copySQL, error) {
	q := sc.Quote
	srcCol, dstCol := q(src.Column), q(dst.Column)

	switch {
	case src.Table == dst.Table:
		t := q(src.Table)
		return copySQL{
			update: fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s AND %s",
				t, dstCol, srcCol, emptyCond(dstCol), presentCond(srcCol)),
			conflicts: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s AND %s AND %s <> %s",
				t, presentCond(dstCol), presentCond(srcCol), dstCol, srcCol),
		}, nil

	case src.Table == link.Principal && dst.Table == link.Satellite:
		p, s := q(link.Principal), q(link.Satellite)
		key, ref := q(link.Key), q(link.Column)
		pSrc, sDst := "p."+srcCol, s+"."+dstCol
		match := fmt.Sprintf("p.%s = %s.%s", key, s, ref)
		return copySQL{
			update: fmt.Sprintf(
				"UPDATE %s SET %s = (SELECT %s FROM %s p WHERE %s) WHERE %s AND EXISTS (SELECT 1 FROM %s p WHERE %s AND %s)",
				s, dstCol, pSrc, p, match, emptyCond(sDst), p, match, presentCond(pSrc)),
			uncovered: fmt.Sprintf(
				"SELECT p.%s FROM %s p WHERE %s AND NOT EXISTS (SELECT 1 FROM %s x WHERE x.%s = p.%s) ORDER BY p.%s",
				key, p, presentCond(pSrc), s, ref, key, key),
			conflicts: fmt.Sprintf(
				"SELECT COUNT(*) FROM %s JOIN %s p ON %s WHERE %s AND %s AND %s <> %s",
				s, p, match, presentCond(sDst), presentCond(pSrc), sDst, pSrc),
		}, nil

	case src.Table == link.Satellite && dst.Table == link.Principal:
		p, s := q(link.Principal), q(link.Satellite)
		key, ref := q(link.Key), q(link.Column)
		sSrc, pDst := "s."+srcCol, p+"."+dstCol
		match := fmt.Sprintf("s.%s = %s.%s", ref, p, key)
		return copySQL{
			update: fmt.Sprintf(
				"UPDATE %s SET %s = (SELECT %s FROM %s s WHERE %s AND %s ORDER BY %s LIMIT 1) WHERE %s AND EXISTS (SELECT 1 FROM %s s WHERE %s AND %s)",
				p, dstCol, sSrc, s, match, presentCond(sSrc), sSrc, emptyCond(pDst), s, match, presentCond(sSrc)),
			uncovered: fmt.Sprintf(
				"SELECT s.%s FROM %s s WHERE %s AND NOT EXISTS (SELECT 1 FROM %s x WHERE x.%s = s.%s) ORDER BY s.%s",
				ref, s, presentCond(sSrc), p, key, ref, ref),
			conflicts: fmt.Sprintf(
				"SELECT COUNT(*) FROM %s JOIN %s s ON %s WHERE %s AND %s AND %s <> %s",
				p, s, match, presentCond(pDst), presentCond(sSrc), pDst, sSrc),
		}, nil
	}

	return copySQL{}, alerr.New(alerr.EInternalError, "relocation columns are not on the link").
		With("from", src.String()).
		With("to", dst.String()).
		With("principal", link.Principal).
		With("satellite", link.Satellite)
}

// copyColumn fills empty dst values from src and accounts for what could not move.
func copyColumn(ctx context.Context, sc *engine.StepContext, src, dst ColumnRef, link Link, allowUncovered bool) error {
	stmts, err := buildCopySQL(sc, src, dst, link)
	if err != nil {
		return err
	}

	if stmts.uncovered != "" {
		ids, total, err := sampleIDs(ctx, sc, stmts.uncovered)
		if err != nil {
			return err
		}
		if total > 0 {
			if !allowUncovered {
				return alerr.New(alerr.ErrRelocationUncovered, "some values have no destination row").
					With("from", src.String()).
					With("to", dst.String()).
					With("count", total).
					With("entity_ids", ids).
					WithHelp("create the missing destination rows first, or allow uncovered values explicitly")
			}
			slog.Warn("relocation leaves values behind",
				"from", src.String(),
				"to", dst.String(),
				"count", total,
				"entity_ids", ids)
			sc.Note("relocation_uncovered", total)
		}
	}

	n, err := sc.ExecCount(ctx, stmts.update)
	if err != nil {
		return err
	}
	sc.Note("relocated_rows", n)

	conflicts, err := sc.QueryInt(ctx, stmts.conflicts)
	if err != nil {
		return err
	}
	if conflicts > 0 {
		slog.Warn("relocation kept existing destination values",
			"from", src.String(),
			"to", dst.String(),
			"count", conflicts)
		sc.Note("relocation_conflicts", conflicts)
	}
	return nil
}

// sampleIDs runs a single-column id query and returns the first few ids and the total.
func sampleIDs(ctx context.Context, sc *engine.StepContext, query string) ([]string, int64, error) {
	ids, err := collectIDs(ctx, sc, query)
	if err != nil {
		return nil, 0, err
	}
	return ids[:min(len(ids), maxSampleIDs)], int64(len(ids)), nil
}

// collectIDs runs a single-column id query and returns every id as text.
func collectIDs(ctx context.Context, sc *engine.StepContext, query string) ([]string, error) {
	rows, err := sc.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to scan entity id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "error iterating entity ids")
	}
	return ids, nil
}
