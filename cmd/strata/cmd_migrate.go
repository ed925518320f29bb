package main

import (
	"github.com/spf13/cobra"
)

// migrateCmd applies pending units.
func migrateCmd() *cobra.Command {
	var dryRun bool
	var target int64

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migration units",
		Long: `Apply pending migration units in version order under the migration lock.

Each unit runs in one transaction where the dialect supports transactional DDL.
Steps whose effect is already present are skipped, so re-running after a
partial failure resumes where it stopped. The run stops at the first failure.`,
		Example: `  # Apply every pending unit
  strata migrate

  # Apply up to and including one version
  strata migrate --to 20240215090000

  # Show pending units and each step's guard verdict without changing anything
  strata migrate --dry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if dryRun {
				planned, skipped, err := client.Plan(ctx, target)
				if err != nil {
					return err
				}
				return renderPlan(w, planned, skipped)
			}

			report, err := client.Migrate(ctx, target)
			if rerr := renderReport(w, report); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry", false, "Preview pending units without applying them")
	cmd.Flags().Int64Var(&target, "to", 0, "Stop after this version (default: latest)")
	return cmd
}
