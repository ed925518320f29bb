package reshape

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/roles"
)

// Partition brings satellite rows in line with each principal's role:
// unset roles get the policy default, every licensed kind gets exactly one
// row and rows of kinds the role is not licensed for are removed.
// Principals with an unknown role are left untouched for the verifier.
type Partition struct {
	Policy roles.Policy
}

// PartitionReport counts what a partition pass changed.
type PartitionReport struct {
	// Defaulted is the number of principals whose unset role was replaced.
	Defaulted int64
	// DefaultedIDs lists those principals.
	DefaultedIDs []string
	// Created and Deleted count satellite rows per kind name.
	Created map[string]int64
	Deleted map[string]int64
	// UnknownRoles counts principals whose role the policy does not declare.
	UnknownRoles int64
}

// Changed reports whether the pass modified anything.
func (r *PartitionReport) Changed() bool {
	if r.Defaulted > 0 {
		return true
	}
	for _, n := range r.Created {
		if n > 0 {
			return true
		}
	}
	for _, n := range r.Deleted {
		if n > 0 {
			return true
		}
	}
	return false
}

// Forward returns a single data step. It is idempotent: a second pass finds nothing to do.
func (p Partition) Forward() []engine.Step {
	return []engine.Step{
		engine.Transform("partition profiles by role", nil, func(ctx context.Context, sc *engine.StepContext) error {
			_, err := p.Run(ctx, sc)
			return err
		}),
	}
}

// Run executes the partition against sc and records counters as notes.
func (p Partition) Run(ctx context.Context, sc *engine.StepContext) (*PartitionReport, error) {
	pol := p.Policy
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	report := &PartitionReport{
		Created: make(map[string]int64),
		Deleted: make(map[string]int64),
	}
	principal := sc.Quote(pol.Table)
	key := sc.Quote(pol.Key)
	role := sc.Quote(pol.RoleColumn)

	// Unset roles are reassigned first so the default role's satellites are created below.
	ids, err := collectIDs(ctx, sc, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s", key, principal, emptyCond(role), key))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		slog.Warn("role unset, assigning default",
			"table", pol.Table,
			"id", id,
			"role", pol.DefaultRole)
	}
	n, err := sc.ExecCount(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE %s", principal, role, emptyCond(role)), pol.DefaultRole)
	if err != nil {
		return nil, err
	}
	report.Defaulted = n
	report.DefaultedIDs = ids
	sc.Note("roles_defaulted", n)

	for _, kind := range pol.Kinds {
		sat := sc.Quote(kind.Table)
		link := sc.Quote(kind.Link)

		if licensed := pol.LicensedRoles(kind.Name); len(licensed) > 0 {
			created, err := sc.ExecCount(ctx, fmt.Sprintf(
				"INSERT INTO %s (%s) SELECT u.%s FROM %s u WHERE u.%s IN (%s) AND NOT EXISTS (SELECT 1 FROM %s s WHERE s.%s = u.%s)",
				sat, link, key, principal, role, placeholders(len(licensed)), sat, link, key),
				stringArgs(licensed)...)
			if err != nil {
				return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to create missing satellites").
					WithTable(kind.Table)
			}
			report.Created[kind.Name] = created
			sc.Note("created_"+kind.Name, created)
		}

		if unlicensed := pol.UnlicensedRoles(kind.Name); len(unlicensed) > 0 {
			deleted, err := sc.ExecCount(ctx, fmt.Sprintf(
				"DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s IN (%s))",
				sat, link, key, principal, role, placeholders(len(unlicensed))),
				stringArgs(unlicensed)...)
			if err != nil {
				return nil, alerr.Wrap(alerr.ErrSQLExecution, err, "failed to delete disallowed satellites").
					WithTable(kind.Table)
			}
			report.Deleted[kind.Name] = deleted
			sc.Note("deleted_"+kind.Name, deleted)
		}
	}

	known := pol.Roles()
	unknown, err := sc.QueryInt(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s NOT IN (%s)", principal, role, placeholders(len(known))),
		stringArgs(known)...)
	if err != nil {
		return nil, err
	}
	if unknown > 0 {
		slog.Warn("principals with unknown roles left unchanged", "table", pol.Table, "count", unknown)
	}
	report.UnknownRoles = unknown
	sc.Note("unknown_roles", unknown)

	slog.Info("partition complete",
		"defaulted", report.Defaulted,
		"created", maps.Clone(report.Created),
		"deleted", maps.Clone(report.Deleted),
		"unknown_roles", report.UnknownRoles)
	return report, nil
}
