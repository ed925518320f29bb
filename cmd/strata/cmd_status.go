package main

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hlop3z/strata/internal/cli"
	"github.com/hlop3z/strata/internal/ui"
	"github.com/hlop3z/strata/pkg/strata"
)

// statusCmd shows applied, pending, skipped and missing units.
func statusCmd() *cobra.Command {
	var tui bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending units",
		Long: `List every registered or recorded unit with its state:
applied, pending, skipped (below the ledger head but never applied)
or missing (recorded but no longer registered).

With --tui an interactive browser also shows verifier findings and the
schema fingerprint.`,
		Example: `  # Show unit states
  strata status

  # Browse status, violations and fingerprint interactively
  strata status --tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			statuses, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			if tui {
				if cli.Default().IsTTY() {
					return ui.ShowStatus(ui.TabUnits, collectStatusData(cmd, client, statuses))
				}
				fmt.Fprint(cmd.ErrOrStderr(), cli.FormatWarning("--tui needs an interactive terminal; printing a table"))
			}
			return renderStatus(cmd.OutOrStdout(), statuses)
		},
	}

	cmd.Flags().BoolVar(&tui, "tui", false, "Open the interactive status browser")
	return cmd
}

// collectStatusData gathers what the status browser shows. Verifier and
// fingerprint failures are shown in place rather than aborting.
func collectStatusData(cmd *cobra.Command, client *strata.Client, statuses []strata.UnitStatus) ui.StatusData {
	ctx := cmd.Context()
	data := ui.StatusData{Database: client.Dialect()}

	for _, s := range statuses {
		data.Units = append(data.Units, ui.UnitRow{
			Version:     s.Version,
			Name:        s.Name,
			Description: s.Description,
			State:       string(s.State),
			AppliedAt:   s.AppliedAt,
			Reversible:  s.Reversible,
		})
	}

	if info, err := client.LockInfo(ctx); err == nil && info.Locked {
		data.LockedBy = info.LockedBy
	}

	if violations, err := client.Verify(ctx); err != nil {
		slog.Warn("verify failed", "error", err)
		data.Violations = []string{"verify failed: " + err.Error()}
	} else {
		for _, v := range violations {
			data.Violations = append(data.Violations, v.String())
		}
	}

	hash, err := client.Fingerprint(ctx)
	if err != nil {
		slog.Warn("fingerprint failed", "error", err)
		return data
	}
	data.Fingerprint = hash.Root
	for _, name := range slices.Sorted(maps.Keys(hash.Tables)) {
		t := hash.Tables[name]
		data.Tables = append(data.Tables, ui.TableRow{Name: name, Hash: t.Hash, Columns: len(t.Columns)})
	}
	return data
}
