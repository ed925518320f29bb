package roles

import (
	"slices"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLicensing(t *testing.T) {
	p := Default()

	tests := []struct {
		role, kind string
		want       bool
	}{
		{"tenant", "tenant_profile", true},
		{"tenant", "preferences", true},
		{"tenant", "operator_profile", false},
		{"operator", "operator_profile", true},
		{"operator", "preferences", false},
		{"admin", "tenant_profile", false},
		{"landlord", "tenant_profile", false},
	}
	for _, tt := range tests {
		if got := p.Licensed(tt.role, tt.kind); got != tt.want {
			t.Errorf("Licensed(%q, %q) = %v, want %v", tt.role, tt.kind, got, tt.want)
		}
	}

	if got := p.LicensedRoles("tenant_profile"); !slices.Equal(got, []string{"tenant"}) {
		t.Errorf("LicensedRoles(tenant_profile) = %v", got)
	}
	if got := p.UnlicensedRoles("tenant_profile"); !slices.Equal(got, []string{"admin", "operator"}) {
		t.Errorf("UnlicensedRoles(tenant_profile) = %v", got)
	}
	if got := p.Roles(); !slices.Equal(got, []string{"admin", "operator", "tenant"}) {
		t.Errorf("Roles() = %v", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
		help   string
	}{
		{"unknown default role", func(p *Policy) { p.DefaultRole = "tenat" }, "did you mean 'tenant'?"},
		{"empty default role", func(p *Policy) { p.DefaultRole = "" }, ""},
		{"unknown licensed kind", func(p *Policy) { p.Licenses["operator"] = []string{"operator_profil"} }, "did you mean 'operator_profile'?"},
		{"duplicate kind", func(p *Policy) { p.Kinds = append(p.Kinds, p.Kinds[0]) }, ""},
		{"kind without link", func(p *Policy) { p.Kinds[0].Link = "" }, ""},
		{"no roles", func(p *Policy) { p.Licenses = nil }, ""},
		{"no principal table", func(p *Policy) { p.Table = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			err := p.Validate()
			if !alerr.Is(err, alerr.ErrPolicyInvalid) {
				t.Fatalf("Validate() error = %v, want ErrPolicyInvalid", err)
			}
			if tt.help == "" {
				return
			}
			helps := alerr.Find(err, alerr.ErrPolicyInvalid).Helps()
			if !slices.Contains(helps, tt.help) {
				t.Errorf("helps = %v, want %q", helps, tt.help)
			}
		})
	}
}

func TestWithDefaultRole(t *testing.T) {
	base := Default()
	p := base.WithDefaultRole("operator")
	if p.DefaultRole != "operator" || base.DefaultRole != "tenant" {
		t.Errorf("WithDefaultRole() changed the receiver or did not apply")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
