// Package roles defines which satellite profile rows each principal role is
// licensed to own.
package roles

import (
	"slices"
	"sort"

	"github.com/hlop3z/strata/internal/alerr"
)

// Kind is a satellite table whose rows belong to one principal row.
type Kind struct {
	// Name is the policy-level name (e.g., "tenant_profile").
	Name string `yaml:"name"`
	// Table holds the satellite rows.
	Table string `yaml:"table"`
	// Link is the satellite column referencing the principal key.
	Link string `yaml:"link"`
}

// Policy maps roles to the satellite kinds they must own exactly one of.
// A kind not licensed to a role must not exist for principals of that role.
type Policy struct {
	// Table is the principal table.
	Table string `yaml:"table"`
	// Key is the principal primary key column.
	Key string `yaml:"key"`
	// RoleColumn holds each principal's role.
	RoleColumn string `yaml:"role_column"`
	// DefaultRole is assigned to principals whose role is unset.
	DefaultRole string `yaml:"default_role"`
	// Kinds lists the satellite kinds under policy.
	Kinds []Kind `yaml:"kinds"`
	// Licenses maps each role to the kind names it owns.
	Licenses map[string][]string `yaml:"licenses"`
}

// Default returns the rental platform policy: tenants own a tenant profile
// and a preferences row, operators own an operator profile, admins own none.
// Unset roles default to tenant.
func Default() Policy {
	return Policy{
		Table:       "users",
		Key:         "id",
		RoleColumn:  "role",
		DefaultRole: "tenant",
		Kinds: []Kind{
			{Name: "tenant_profile", Table: "tenant_profiles", Link: "user_id"},
			{Name: "operator_profile", Table: "operator_profiles", Link: "user_id"},
			{Name: "preferences", Table: "preferences", Link: "user_id"},
		},
		Licenses: map[string][]string{
			"tenant":   {"tenant_profile", "preferences"},
			"operator": {"operator_profile"},
			"admin":    {},
		},
	}
}

// WithDefaultRole returns a copy of p with a different default role.
func (p Policy) WithDefaultRole(role string) Policy {
	p.DefaultRole = role
	return p
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	if p.Table == "" || p.Key == "" || p.RoleColumn == "" {
		return alerr.New(alerr.ErrPolicyInvalid, "policy needs a principal table, key and role column").
			WithTable(p.Table)
	}
	if len(p.Licenses) == 0 {
		return alerr.New(alerr.ErrPolicyInvalid, "policy declares no roles")
	}

	kinds := make([]string, 0, len(p.Kinds))
	for _, k := range p.Kinds {
		if k.Name == "" || k.Table == "" || k.Link == "" {
			return alerr.New(alerr.ErrPolicyInvalid, "kind needs a name, table and link column").
				With("kind", k.Name)
		}
		if slices.Contains(kinds, k.Name) {
			return alerr.New(alerr.ErrPolicyInvalid, "kind declared twice").
				With("kind", k.Name)
		}
		kinds = append(kinds, k.Name)
	}

	for _, role := range p.Roles() {
		for _, name := range p.Licenses[role] {
			if !slices.Contains(kinds, name) {
				e := alerr.New(alerr.ErrPolicyInvalid, "role licenses an unknown kind").
					With("role", role).
					With("kind", name)
				if s := alerr.Suggest(name, kinds); s != "" {
					e.WithHelp(s)
				}
				return e
			}
		}
	}

	if !p.IsKnown(p.DefaultRole) {
		e := alerr.New(alerr.ErrPolicyInvalid, "default role is not a known role").
			With("default_role", p.DefaultRole).
			With("roles", p.Roles())
		if s := p.Suggest(p.DefaultRole); s != "" {
			e.WithHelp(s)
		}
		return e
	}
	return nil
}

// Roles returns the known roles, sorted.
func (p Policy) Roles() []string {
	out := make([]string, 0, len(p.Licenses))
	for r := range p.Licenses {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// IsKnown reports whether role is declared.
func (p Policy) IsKnown(role string) bool {
	_, ok := p.Licenses[role]
	return ok
}

// Licensed reports whether role owns kind.
func (p Policy) Licensed(role, kind string) bool {
	return slices.Contains(p.Licenses[role], kind)
}

// LicensedRoles returns the roles owning kind, sorted.
func (p Policy) LicensedRoles(kind string) []string {
	var out []string
	for _, r := range p.Roles() {
		if p.Licensed(r, kind) {
			out = append(out, r)
		}
	}
	return out
}

// UnlicensedRoles returns the known roles not owning kind, sorted.
func (p Policy) UnlicensedRoles(kind string) []string {
	var out []string
	for _, r := range p.Roles() {
		if !p.Licensed(r, kind) {
			out = append(out, r)
		}
	}
	return out
}

// Suggest returns a "did you mean" hint for an unknown role, or "".
func (p Policy) Suggest(role string) string {
	return alerr.Suggest(role, p.Roles())
}
