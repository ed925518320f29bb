// Package main provides the strata CLI, which applies the compiled-in
// migration units and audits the role/profile invariants they maintain.
//
// Usage:
//
//	strata migrate [--to VERSION] [--dry]   # Apply pending units
//	strata rollback [steps] [--to VERSION]  # Revert the newest units (default: 1)
//	strata status [--tui]                   # Show applied/pending units
//	strata verify                           # Report role/profile violations
//	strata repair                           # Realign profiles with roles
//	strata fingerprint                      # Print the schema merkle root
//	strata lock status|release              # Inspect or clear the migration lock
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hlop3z/strata/internal/cli"
	"github.com/hlop3z/strata/pkg/strata"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	databaseURL string
	configFile  string
	dialectName string
	defaultRole string
	logLevel    string
	jsonOutput  bool
	noColor     bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "strata",
		Short:         "Versioned schema and data migrations for the rental platform",
		Long:          `Strata applies ordered, reversible migration units that change both the schema and the data living in it, and audits the role/profile invariants those units establish.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupOutput(cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&databaseURL, "database-url", "d", "", "Database connection URL")
	pf.StringVarP(&configFile, "config", "c", defaultConfigFile, "Path to config file")
	pf.StringVar(&dialectName, "dialect", "", "Database dialect (postgres, sqlite); inferred from the URL when empty")
	pf.StringVar(&defaultRole, "default-role", "", "Role assigned to users whose role is unset")
	logLevel = ""
	pf.Var(levelValue{&logLevel}, "log-level", "Log level (debug, info, warn, error)")
	pf.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		migrateCmd(),
		rollbackCmd(),
		statusCmd(),
		verifyCmd(),
		repairCmd(),
		fingerprintCmd(),
		lockCmd(),
		versionCmd(),
	)
	return rootCmd
}

// levelValue is a flag value that rejects unknown slog levels at parse time.
type levelValue struct{ s *string }

var _ pflag.Value = levelValue{}

func (v levelValue) String() string {
	if v.s == nil {
		return ""
	}
	return *v.s
}

func (v levelValue) Set(s string) error {
	if _, err := parseLevel(s); err != nil {
		return err
	}
	*v.s = s
	return nil
}

func (v levelValue) Type() string { return "level" }

// setupOutput installs the output mode and the slog handler for this run.
func setupOutput(stderr io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cli.DetectConfig(os.Stdout)
	switch {
	case jsonOutput:
		out.Mode = cli.ModeJSON
	case noColor:
		out.Mode = cli.ModePlain
	}
	cli.SetDefault(out)

	logger, err := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// reportError prints err unless the command already rendered it.
func reportError(w io.Writer, err error) {
	if errors.Is(err, errReported) {
		return
	}

	var connErr *strata.ConnectionError
	if errors.As(err, &connErr) {
		printConnectionError(w, connErr)
		return
	}
	if errors.Is(err, strata.ErrMissingDatabaseURL) {
		printMissingDatabaseURL(w)
		return
	}
	fmt.Fprint(w, cli.FormatError(err))
}
