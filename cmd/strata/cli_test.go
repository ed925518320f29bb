package main

import (
	"bytes"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
	"github.com/hlop3z/strata/internal/testutil"
)

// run executes the root command in-process and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rentals.db")
	db := "-d=" + path

	out, _, err := run(t, db, "migrate", "--dry")
	if err != nil {
		t.Fatalf("migrate --dry: %v", err)
	}
	if !strings.Contains(out, "create_users") || !strings.Contains(out, "consolidate_display_name") {
		t.Errorf("plan output missing units:\n%s", out)
	}

	out, _, err = run(t, db, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got := strings.Count(out, "[APPLIED]"); got != 7 {
		t.Errorf("migrate applied %d units, want 7:\n%s", got, out)
	}

	out, _, err = run(t, db, "migrate")
	if err != nil || !strings.Contains(out, "nothing to do") {
		t.Errorf("second migrate = %q, %v", out, err)
	}

	out, _, err = run(t, db, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "7 units applied, 0 pending") {
		t.Errorf("status output:\n%s", out)
	}

	if _, _, err := run(t, db, "verify"); err != nil {
		t.Fatalf("verify on clean database: %v", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.ExecSQL(t, conn, `INSERT INTO users (id, email) VALUES ('u9', 'late@example.com')`)
	conn.Close()

	out, _, err = run(t, db, "verify")
	if !errors.Is(err, errViolations) || exitCode(err) != exitViolations {
		t.Fatalf("verify with violation: err = %v", err)
	}
	if !errors.Is(err, errReported) || !strings.Contains(out, "u9") {
		t.Errorf("verify output:\n%s", out)
	}

	out, _, err = run(t, db, "repair")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !strings.Contains(out, "assigned the default role: u9") {
		t.Errorf("repair output:\n%s", out)
	}
	if _, _, err := run(t, db, "verify"); err != nil {
		t.Errorf("verify after repair: %v", err)
	}

	_, stderr, err := run(t, db, "fingerprint", "--expect", "0000")
	if exitCode(err) != exitDrift || !strings.Contains(stderr, "schema drift") {
		t.Errorf("fingerprint --expect: err = %v, stderr = %q", err, stderr)
	}

	out, _, err = run(t, db, "lock", "status")
	if err != nil || !strings.Contains(out, "lock available") {
		t.Errorf("lock status = %q, %v", out, err)
	}

	out, _, err = run(t, db, "rollback")
	if err != nil || strings.Count(out, "[REVERTED]") != 1 {
		t.Errorf("rollback = %q, %v", out, err)
	}

	out, _, err = run(t, db, "rollback", "--to", "0")
	if err != nil || strings.Count(out, "[REVERTED]") != 6 {
		t.Errorf("rollback --to 0 = %q, %v", out, err)
	}
}

func TestCLIJSONStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rentals.db")

	out, _, err := run(t, "-d="+path, "--json", "status")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	if !strings.HasPrefix(out, "[") || !strings.Contains(out, `"state": "pending"`) {
		t.Errorf("json status:\n%s", out)
	}
}

func TestCLIMissingDatabaseURL(t *testing.T) {
	_, _, err := run(t, "status")
	if err == nil {
		t.Fatal("status without a database URL succeeded")
	}

	var buf bytes.Buffer
	reportError(&buf, err)
	if !strings.Contains(buf.String(), "DATABASE_URL") {
		t.Errorf("missing URL help = %q", buf.String())
	}
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		args    []string
		toSet   bool
		want    int
		wantErr bool
	}{
		{nil, false, 1, false},
		{[]string{"3"}, false, 3, false},
		{[]string{"0"}, false, 0, true},
		{[]string{"x"}, false, 0, true},
		{[]string{"2"}, true, 0, true},
		{nil, true, 1, false},
	}
	for _, tt := range tests {
		got, err := parseSteps(tt.args, tt.toSet)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSteps(%v, %v) = %d, %v", tt.args, tt.toSet, got, err)
		}
		if err != nil && !alerr.Is(err, alerr.ErrConfigInvalid) {
			t.Errorf("parseSteps error code = %v", alerr.GetErrorCode(err))
		}
	}
}

func TestConnectionHints(t *testing.T) {
	tests := []struct {
		dialect, cause, want string
	}{
		{"postgres", "dial tcp: connection refused", "pg_isready"},
		{"postgres", "password authentication failed", "username and password"},
		{"sqlite", "unable to open database file", "writable"},
		{"mysql", "whatever", "verify the database server"},
	}
	for _, tt := range tests {
		hints := strings.Join(connectionHints(tt.dialect, tt.cause), "\n")
		if !strings.Contains(hints, tt.want) {
			t.Errorf("connectionHints(%q, %q) = %q, want %q", tt.dialect, tt.cause, hints, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(reported(errViolations)); got != exitViolations {
		t.Errorf("violations exit = %d", got)
	}
	if got := exitCode(reported(errDrift)); got != exitDrift {
		t.Errorf("drift exit = %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Errorf("generic exit = %d", got)
	}
}

func TestLogLevelFlag(t *testing.T) {
	_, _, err := run(t, "--log-level=loud", "version")
	if err == nil || !strings.Contains(err.Error(), "loud") {
		t.Errorf("unknown level accepted: %v", err)
	}

	out, _, err := run(t, "--log-level=debug", "version")
	if err != nil || out != "strata dev\n" {
		t.Errorf("version = %q, %v", out, err)
	}
}
