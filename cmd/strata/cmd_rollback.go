package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/pkg/strata"
)

// rollbackCmd reverts the newest applied units.
func rollbackCmd() *cobra.Command {
	var to int64

	cmd := &cobra.Command{
		Use:   "rollback [steps]",
		Short: "Revert the newest applied units (default: 1)",
		Long: `Revert applied units newest first under the migration lock.

Without arguments the newest unit is reverted. With --to every unit newer than
the given version is reverted; --to 0 reverts everything. Units without
backward steps stop the rollback before anything runs.`,
		Example: `  # Revert the newest unit
  strata rollback

  # Revert the three newest units
  strata rollback 3

  # Revert everything applied after a version
  strata rollback --to 20240201090000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toSet := cmd.Flags().Changed("to")
			steps, err := parseSteps(args, toSet)
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			var report *strata.Report
			if toSet {
				report, err = client.RevertTo(cmd.Context(), to)
			} else {
				report, err = client.Rollback(cmd.Context(), steps)
			}
			if rerr := renderReport(cmd.OutOrStdout(), report); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "Revert every unit newer than this version")
	return cmd
}

// parseSteps reads the optional positional step count.
func parseSteps(args []string, toSet bool) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	if toSet {
		return 0, alerr.New(alerr.ErrConfigInvalid, "steps and --to are mutually exclusive")
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps < 1 {
		return 0, alerr.Newf(alerr.ErrConfigInvalid, "invalid steps argument %q", args[0]).
			WithHelp("expected a positive integer, e.g. `strata rollback 3`")
	}
	return steps, nil
}
