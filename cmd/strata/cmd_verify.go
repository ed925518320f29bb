package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/strata/internal/cli"
	"github.com/hlop3z/strata/internal/drift"
)

// verifyCmd reports role/profile invariant violations.
func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report users whose profiles disagree with their role",
		Long: `Check every user against the role policy without writing anything.

Reports users with no role or an unknown role, required profiles that are
missing or duplicated, profiles the role does not allow, and profiles whose
user no longer exists. Exits with status 2 when any violation is found.`,
		Example: `  # Audit the database
  strata verify

  # Machine-readable output for CI
  strata verify --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			violations, err := client.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if err := renderViolations(cmd.OutOrStdout(), violations); err != nil {
				return err
			}
			if len(violations) > 0 {
				return reported(errViolations)
			}
			return nil
		},
	}
	return cmd
}

// repairCmd re-runs the role partitioning.
func repairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Create and delete profiles so they match each user's role",
		Long: `Re-run the role partitioning in one transaction under the migration lock.

Users without a role get the default role, missing required profiles are
created and profiles the role does not allow are deleted. Users with an
unknown role are left for verify to report.`,
		Example: `  # Realign profiles, then confirm
  strata repair && strata verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := client.Repair(cmd.Context())
			if err != nil {
				return err
			}
			return renderPartition(cmd.OutOrStdout(), report)
		},
	}
	return cmd
}

// fingerprintCmd prints the schema merkle root.
func fingerprintCmd() *cobra.Command {
	var expect string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print a merkle hash of the live schema",
		Long: `Hash every table and column of the live schema, excluding strata's own
bookkeeping tables. Two databases at the same version share a root hash.
With --expect the command exits with status 3 when the root differs.`,
		Example: `  # Print the fingerprint
  strata fingerprint

  # Fail when staging has drifted from a known root
  strata fingerprint --expect 3f2a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			hash, err := client.Fingerprint(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := renderFingerprint(w, hash); err != nil {
				return err
			}
			if expect != "" && expect != hash.Root {
				fmt.Fprint(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("schema drift: expected %s, got %s",
					drift.ShortHash(expect), drift.ShortHash(hash.Root))))
				return reported(errDrift)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expect, "expect", "", "Expected root hash")
	return cmd
}
