package engine

import "fmt"

// Warning is a safety notice about a unit about to run.
type Warning struct {
	Severity string // "warning" or "error"
	Type     string // "drop_table", "drop_column", "lossy_revert", "irreversible"
	Version  int64
	Step     string
	Message  string
}

// Lint checks the steps a unit would run in dir for destructive effects.
// Data transforms are not inspected; their guards describe their effect.
func Lint(u Unit, dir Direction) []Warning {
	var warnings []Warning

	if dir == Down && !u.Reversible() {
		warnings = append(warnings, Warning{
			Severity: "error",
			Type:     "irreversible",
			Version:  u.Version,
			Message:  fmt.Sprintf("%s has no backward steps", u.Label()),
		})
		return warnings
	}

	for _, s := range u.Steps(dir) {
		switch s.Kind {
		case KindDropTable:
			warnings = append(warnings, Warning{
				Severity: "warning",
				Type:     "drop_table",
				Version:  u.Version,
				Step:     s.Name,
				Message:  fmt.Sprintf("%s will DELETE ALL DATA (%s)", u.Label(), s.Name),
			})
		case KindDropColumn:
			warnings = append(warnings, Warning{
				Severity: "warning",
				Type:     "drop_column",
				Version:  u.Version,
				Step:     s.Name,
				Message:  fmt.Sprintf("%s will DELETE column data (%s)", u.Label(), s.Name),
			})
		}
	}

	if dir == Down && u.Lossy != "" {
		warnings = append(warnings, Warning{
			Severity: "warning",
			Type:     "lossy_revert",
			Version:  u.Version,
			Message:  fmt.Sprintf("%s cannot fully restore data: %s", u.Label(), u.Lossy),
		})
	}
	return warnings
}

// LintPlan lints every unit of a plan in order.
func LintPlan(p *Plan) []Warning {
	var warnings []Warning
	for _, u := range p.Units {
		warnings = append(warnings, Lint(u, p.Direction)...)
	}
	return warnings
}
