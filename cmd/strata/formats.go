package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hlop3z/strata/internal/cli"
	"github.com/hlop3z/strata/internal/drift"
	"github.com/hlop3z/strata/pkg/strata"
)

// Time format constants for consistent formatting across the CLI.
const (
	// TimeJSON is RFC3339 format for JSON output.
	TimeJSON = time.RFC3339

	// TimeFull is a detailed format with seconds (e.g., "2006-01-02 15:04:05").
	TimeFull = "2006-01-02 15:04:05"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type resultJSON struct {
	Version    int64            `json:"version"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	Steps      int              `json:"steps_run"`
	Skipped    int              `json:"steps_skipped"`
	DurationMs int64            `json:"duration_ms"`
	Notes      map[string]int64 `json:"notes,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// renderReport prints {version, name, status} for every unit the run touched.
func renderReport(w io.Writer, report *strata.Report) error {
	if report == nil {
		return nil
	}
	if cli.Default().IsJSON() {
		out := make([]resultJSON, 0, len(report.Results))
		for _, r := range report.Results {
			rj := resultJSON{
				Version:    r.Version,
				Name:       r.Name,
				Status:     string(r.Outcome),
				Steps:      r.StepsRun,
				Skipped:    r.StepsSkipped,
				DurationMs: r.Duration.Milliseconds(),
				Notes:      r.Notes,
			}
			if r.Err != nil {
				rj.Error = r.Err.Error()
			}
			out = append(out, rj)
		}
		return writeJSON(w, out)
	}

	if len(report.Results) == 0 {
		fmt.Fprint(w, cli.FormatSuccess("nothing to do"))
		return nil
	}

	table := cli.NewTable("VERSION", "NAME", "STATUS", "STEPS", "TIME", "NOTES")
	for _, r := range report.Results {
		table.AddRow(
			strconv.FormatInt(r.Version, 10),
			r.Name,
			cli.StateBadge(string(r.Outcome)),
			fmt.Sprintf("%d/%d", r.StepsRun, r.StepsRun+r.StepsSkipped),
			r.Duration.Round(time.Millisecond).String(),
			formatNotes(r.Notes),
		)
	}
	fmt.Fprint(w, table.String())

	applied := report.Count(strata.OutcomeApplied) + report.Count(strata.OutcomeReverted)
	fmt.Fprintln(w)
	fmt.Fprint(w, cli.FormatSuccess(fmt.Sprintf("%s %s", cli.FormatCount(applied, "unit", "units"), pastTense(report))))
	return nil
}

func pastTense(report *strata.Report) string {
	if report.Direction == strata.Down {
		return "reverted"
	}
	return "applied"
}

// formatNotes renders step counters as "key=n" sorted by key.
func formatNotes(notes map[string]int64) string {
	parts := make([]string, 0, len(notes))
	for _, k := range slices.Sorted(maps.Keys(notes)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, notes[k]))
	}
	return strings.Join(parts, " ")
}

type plannedJSON struct {
	Version  int64             `json:"version"`
	Name     string            `json:"name"`
	Steps    []plannedStepJSON `json:"steps"`
	Warnings []string          `json:"warnings,omitempty"`
}

type plannedStepJSON struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Applied   bool   `json:"applied"`
	Unguarded bool   `json:"unguarded,omitempty"`
}

// renderPlan prints what migrate would do without doing it.
func renderPlan(w io.Writer, planned []strata.PlannedUnit, skipped []strata.Unit) error {
	if cli.Default().IsJSON() {
		out := struct {
			Pending []plannedJSON `json:"pending"`
			Skipped []int64       `json:"skipped"`
		}{Pending: []plannedJSON{}, Skipped: []int64{}}
		for _, p := range planned {
			pj := plannedJSON{Version: p.Unit.Version, Name: p.Unit.Name}
			for _, s := range p.Steps {
				pj.Steps = append(pj.Steps, plannedStepJSON{Name: s.Name, Kind: s.Kind.String(), Applied: s.Applied, Unguarded: s.Unguarded})
			}
			for _, w := range strata.Lint(p.Unit, strata.Up) {
				pj.Warnings = append(pj.Warnings, w.Message)
			}
			out.Pending = append(out.Pending, pj)
		}
		for _, u := range skipped {
			out.Skipped = append(out.Skipped, u.Version)
		}
		return writeJSON(w, out)
	}

	if len(planned) == 0 {
		fmt.Fprint(w, cli.FormatSuccess("database is up to date"))
	}
	for _, p := range planned {
		fmt.Fprintf(w, "%s %s\n", cli.Header(p.Unit.Label()), cli.Dim(p.Unit.Description))
		for _, s := range p.Steps {
			verdict := "run"
			switch {
			case s.Unguarded:
				verdict = "run (unguarded)"
			case s.Applied:
				verdict = cli.Dim("skip (already applied)")
			}
			fmt.Fprintf(w, "  %s %-15s %-44s %s\n", cli.Pipe(), s.Kind, s.Name, verdict)
		}
		for _, warn := range strata.Lint(p.Unit, strata.Up) {
			fmt.Fprint(w, "  "+cli.FormatWarning(warn.Message))
		}
	}
	for _, u := range skipped {
		fmt.Fprint(w, cli.FormatWarning(fmt.Sprintf("%s is below the ledger head and will be skipped", u.Label())))
	}
	return nil
}

type statusJSON struct {
	Version    int64  `json:"version"`
	Name       string `json:"name"`
	State      string `json:"state"`
	AppliedAt  string `json:"applied_at,omitempty"`
	Reversible bool   `json:"reversible"`
}

// renderStatus prints every registered or recorded unit with its state.
func renderStatus(w io.Writer, statuses []strata.UnitStatus) error {
	if cli.Default().IsJSON() {
		out := make([]statusJSON, 0, len(statuses))
		for _, s := range statuses {
			sj := statusJSON{Version: s.Version, Name: s.Name, State: string(s.State), Reversible: s.Reversible}
			if !s.AppliedAt.IsZero() {
				sj.AppliedAt = s.AppliedAt.UTC().Format(TimeJSON)
			}
			out = append(out, sj)
		}
		return writeJSON(w, out)
	}

	table := cli.NewTable("VERSION", "NAME", "STATE", "APPLIED")
	applied, pending := 0, 0
	for _, s := range statuses {
		at := ""
		if !s.AppliedAt.IsZero() {
			at = s.AppliedAt.Local().Format(TimeFull)
		}
		switch s.State {
		case strata.StateApplied:
			applied++
		case strata.StatePending:
			pending++
		}
		table.AddRow(strconv.FormatInt(s.Version, 10), s.Name, cli.StateBadge(string(s.State)), at)
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s, %s\n", cli.FormatCount(applied, "unit applied", "units applied"), cli.FormatCount(pending, "pending", "pending"))
	return nil
}

type violationJSON struct {
	EntityID    string `json:"entity_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// renderViolations prints verifier findings, or a success line when there are none.
func renderViolations(w io.Writer, violations []strata.Violation) error {
	if cli.Default().IsJSON() {
		out := make([]violationJSON, 0, len(violations))
		for _, v := range violations {
			out = append(out, violationJSON{EntityID: v.EntityID, Kind: string(v.Kind), Description: v.Description})
		}
		return writeJSON(w, out)
	}

	if len(violations) == 0 {
		fmt.Fprint(w, cli.FormatSuccess("every user owns exactly the profiles its role requires"))
		return nil
	}

	table := cli.NewTable("USER", "KIND", "DESCRIPTION")
	for _, v := range violations {
		table.AddRow(v.EntityID, string(v.Kind), v.Description)
	}
	fmt.Fprint(w, cli.RenderErrorPanel(cli.FormatCount(len(violations), "violation", "violations"), table.String()))
	fmt.Fprint(w, cli.FormatHelp("run `strata repair` to realign profiles with roles"))
	return nil
}

// renderPartition prints what a repair pass changed.
func renderPartition(w io.Writer, report *strata.PartitionReport) error {
	if cli.Default().IsJSON() {
		return writeJSON(w, struct {
			Defaulted    int64            `json:"defaulted"`
			DefaultedIDs []string         `json:"defaulted_ids"`
			Created      map[string]int64 `json:"created"`
			Deleted      map[string]int64 `json:"deleted"`
			UnknownRoles int64            `json:"unknown_roles"`
		}{report.Defaulted, report.DefaultedIDs, report.Created, report.Deleted, report.UnknownRoles})
	}

	if !report.Changed() {
		fmt.Fprint(w, cli.FormatSuccess("profiles already match roles"))
	} else {
		table := cli.NewTable("KIND", "CREATED", "DELETED")
		kinds := slices.Sorted(maps.Keys(report.Created))
		for k := range report.Deleted {
			if !slices.Contains(kinds, k) {
				kinds = append(kinds, k)
			}
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			table.AddRow(k, strconv.FormatInt(report.Created[k], 10), strconv.FormatInt(report.Deleted[k], 10))
		}
		fmt.Fprint(w, table.String())
	}
	if report.Defaulted > 0 {
		fmt.Fprint(w, cli.FormatNote(fmt.Sprintf("%s assigned the default role: %s",
			cli.FormatCount(int(report.Defaulted), "user", "users"), strings.Join(report.DefaultedIDs, ", "))))
	}
	if report.UnknownRoles > 0 {
		fmt.Fprint(w, cli.FormatWarning(fmt.Sprintf("%s with an unknown role left untouched; see `strata verify`",
			cli.FormatCount(int(report.UnknownRoles), "user", "users"))))
	}
	return nil
}

// renderFingerprint prints the merkle root and each table hash.
func renderFingerprint(w io.Writer, hash *strata.SchemaHash) error {
	if cli.Default().IsJSON() {
		tables := make(map[string]string, len(hash.Tables))
		for name, t := range hash.Tables {
			tables[name] = t.Hash
		}
		return writeJSON(w, struct {
			Root   string            `json:"root"`
			Tables map[string]string `json:"tables"`
		}{hash.Root, tables})
	}

	fmt.Fprintln(w, cli.FormatKeyValue("root", hash.Root))
	fmt.Fprintln(w)
	table := cli.NewTable("TABLE", "COLUMNS", "HASH")
	for _, name := range slices.Sorted(maps.Keys(hash.Tables)) {
		t := hash.Tables[name]
		table.AddRow(name, strconv.Itoa(len(t.Columns)), drift.ShortHash(t.Hash))
	}
	fmt.Fprint(w, table.String())
	return nil
}

// renderLock prints who holds the migration lock.
func renderLock(w io.Writer, info *strata.LockInfo) error {
	if cli.Default().IsJSON() {
		out := struct {
			Locked   bool   `json:"locked"`
			LockedBy string `json:"locked_by,omitempty"`
			LockedAt string `json:"locked_at,omitempty"`
		}{Locked: info.Locked, LockedBy: info.LockedBy}
		if !info.LockedAt.IsZero() {
			out.LockedAt = info.LockedAt.UTC().Format(TimeJSON)
		}
		return writeJSON(w, out)
	}

	if !info.Locked {
		fmt.Fprint(w, cli.RenderSuccessPanel("lock available", "no migration is running"))
		return nil
	}
	body := cli.FormatKeyValue("locked by", info.LockedBy) + "\n" +
		cli.FormatKeyValue("locked at", info.LockedAt.Local().Format(TimeFull))
	fmt.Fprint(w, cli.RenderErrorPanel("lock held", body))
	fmt.Fprint(w, cli.FormatHelp("if the holder crashed, run `strata lock release`"))
	return nil
}
