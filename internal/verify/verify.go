// Package verify audits live data against the role policy without changing it.
package verify

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/roles"
)

// Kind classifies a violation.
type Kind string

const (
	NullRole      Kind = "null_role"
	UnknownRole   Kind = "unknown_role"
	Missing       Kind = "missing_satellite"
	Duplicate     Kind = "duplicate_satellite"
	Disallowed    Kind = "disallowed_satellite"
	OrphanProfile Kind = "orphan_satellite"
)

// Violation is one row breaking the role policy.
type Violation struct {
	EntityID    string
	Kind        Kind
	Description string
}

// String renders the violation as "id: description".
func (v Violation) String() string {
	return v.EntityID + ": " + v.Description
}

// Verifier reports every principal whose satellites disagree with its role.
type Verifier struct {
	db      *sql.DB
	dialect dialect.Dialect
	policy  roles.Policy
}

// New creates a Verifier.
func New(db *sql.DB, d dialect.Dialect, policy roles.Policy) *Verifier {
	return &Verifier{db: db, dialect: d, policy: policy}
}

// Verify runs the audit inside a transaction that is always rolled back.
// Principals with an unset or unknown role get a single violation and no
// satellite checks, since their role says nothing about what they may own.
func (v *Verifier) Verify(ctx context.Context) ([]Violation, error) {
	if err := v.policy.Validate(); err != nil {
		return nil, err
	}

	// modernc sqlite rejects read-only transaction options.
	opts := &sql.TxOptions{ReadOnly: v.dialect.Name() == "postgres"}
	tx, err := v.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin audit transaction")
	}
	defer func() { _ = tx.Rollback() }()

	a := &audit{tx: tx, q: v.dialect.QuoteIdent, policy: v.policy}
	roleOf, err := a.principals(ctx)
	if err != nil {
		return nil, err
	}
	for _, kind := range v.policy.Kinds {
		if err := a.satellites(ctx, kind, roleOf); err != nil {
			return nil, err
		}
		if err := a.orphans(ctx, kind); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(a.out, func(x, y Violation) int {
		return cmp.Or(cmp.Compare(x.EntityID, y.EntityID), cmp.Compare(x.Description, y.Description))
	})
	slog.Info("verification complete", "violations", len(a.out))
	return a.out, nil
}

type audit struct {
	tx     *sql.Tx
	q      func(string) string
	policy roles.Policy
	out    []Violation
}

func (a *audit) add(id string, kind Kind, format string, args ...any) {
	a.out = append(a.out, Violation{EntityID: id, Kind: kind, Description: fmt.Sprintf(format, args...)})
}

// principals records role violations and returns the role of every principal
// eligible for satellite checks.
func (a *audit) principals(ctx context.Context) (map[string]string, error) {
	p := a.policy
	rows, err := a.tx.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s",
		a.q(p.Key), a.q(p.RoleColumn), a.q(p.Table)))
	if err != nil {
		return nil, alerr.WrapSQL(err, "read principals", p.Table)
	}
	defer rows.Close()

	roleOf := make(map[string]string)
	for rows.Next() {
		var id string
		var role sql.NullString
		if err := rows.Scan(&id, &role); err != nil {
			return nil, alerr.WrapSQL(err, "scan principal", p.Table)
		}
		switch {
		case !role.Valid || role.String == "":
			a.add(id, NullRole, "%s is unset", p.RoleColumn)
		case !p.IsKnown(role.String):
			if hint := p.Suggest(role.String); hint != "" {
				a.add(id, UnknownRole, "%s %q is not a known role (%s)", p.RoleColumn, role.String, hint)
			} else {
				a.add(id, UnknownRole, "%s %q is not a known role", p.RoleColumn, role.String)
			}
		default:
			roleOf[id] = role.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "iterate principals", p.Table)
	}
	return roleOf, nil
}

// satellites compares each eligible principal's satellite count for kind with its licence.
func (a *audit) satellites(ctx context.Context, kind roles.Kind, roleOf map[string]string) error {
	p := a.policy
	rows, err := a.tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT u.%s, COUNT(s.%s) FROM %s u LEFT JOIN %s s ON s.%s = u.%s GROUP BY u.%s",
		a.q(p.Key), a.q(kind.Link), a.q(p.Table), a.q(kind.Table), a.q(kind.Link), a.q(p.Key), a.q(p.Key)))
	if err != nil {
		return alerr.WrapSQL(err, "count satellites", kind.Table)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return alerr.WrapSQL(err, "scan satellite count", kind.Table)
		}
		role, ok := roleOf[id]
		if !ok {
			continue
		}
		licensed := p.Licensed(role, kind.Name)
		switch {
		case licensed && n == 0:
			a.add(id, Missing, "%s has no %s row", role, kind.Name)
		case licensed && n > 1:
			a.add(id, Duplicate, "%s has %d %s rows, want 1", role, n, kind.Name)
		case !licensed && n > 0:
			a.add(id, Disallowed, "%s must not have a %s row (found %d)", role, kind.Name, n)
		}
	}
	if err := rows.Err(); err != nil {
		return alerr.WrapSQL(err, "iterate satellite counts", kind.Table)
	}
	return nil
}

// orphans reports satellite rows pointing at no principal.
func (a *audit) orphans(ctx context.Context, kind roles.Kind) error {
	p := a.policy
	rows, err := a.tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT s.%s FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s u WHERE u.%s = s.%s)",
		a.q(kind.Link), a.q(kind.Table), a.q(p.Table), a.q(p.Key), a.q(kind.Link)))
	if err != nil {
		return alerr.WrapSQL(err, "find orphan satellites", kind.Table)
	}
	defer rows.Close()

	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return alerr.WrapSQL(err, "scan orphan satellite", kind.Table)
		}
		a.add(id.String, OrphanProfile, "%s row references a missing %s", kind.Name, p.Table)
	}
	if err := rows.Err(); err != nil {
		return alerr.WrapSQL(err, "iterate orphan satellites", kind.Table)
	}
	return nil
}
