package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlop3z/strata/internal/cli"
)

// lockCmd manages the migration lock.
func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage the migration lock",
		Long: `Manage the migration lock.

Migrations and repairs hold a single-row lock table for their whole run.
Use these commands to check who holds it or to clear a lock left by a crash.`,
	}

	cmd.AddCommand(lockStatusCmd())
	cmd.AddCommand(lockReleaseCmd())
	return cmd
}

// lockStatusCmd shows the current lock holder.
func lockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration lock status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.LockInfo(cmd.Context())
			if err != nil {
				return err
			}
			return renderLock(cmd.OutOrStdout(), info)
		},
	}
}

// lockReleaseCmd forcefully releases a stuck lock.
func lockReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Release a stuck migration lock",
		Long: `Forcefully release the migration lock.

Only use this when you are certain no migration or repair is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			info, err := client.LockInfo(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !info.Locked {
				fmt.Fprint(w, cli.FormatSuccess("lock is not held"))
				return nil
			}
			if err := client.ForceUnlock(ctx); err != nil {
				return err
			}
			fmt.Fprint(w, cli.FormatSuccess("released lock held by "+info.LockedBy))
			return nil
		},
	}
}

// versionCmd prints the build version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the strata version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "strata "+version)
			return nil
		},
	}
}
