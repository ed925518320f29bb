package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hlop3z/strata/internal/alerr"
)

func TestFormatErrorNil(t *testing.T) {
	if got := FormatError(nil); got != "" {
		t.Errorf("FormatError(nil) = %q, want empty", got)
	}
}

func TestFormatErrorGeneric(t *testing.T) {
	got := FormatError(errors.New("boom"))
	if got != "error: boom\n" {
		t.Errorf("FormatError() = %q", got)
	}
}

func TestFormatErrorCoded(t *testing.T) {
	err := alerr.New(alerr.ErrRelocationUncovered, "values have no destination row").
		WithTable("operator_profiles").
		With("count", 2).
		WithNote("two operators have no user row").
		WithHelp("set AllowUncovered to discard them")

	got := FormatError(err)

	wantInOrder := []string{
		"error[E5002]: values have no destination row",
		"| count: 2",
		"| table: operator_profiles",
		"note: two operators have no user row",
		"help: set AllowUncovered to discard them",
	}
	pos := 0
	for _, want := range wantInOrder {
		i := strings.Index(got[pos:], want)
		if i < 0 {
			t.Fatalf("output missing %q after offset %d:\n%s", want, pos, got)
		}
		pos += i + len(want)
	}
	if strings.Contains(got, "notes:") || strings.Contains(got, "helps:") {
		t.Errorf("notes and helps should not be rendered as details:\n%s", got)
	}
}

func TestFormatErrorFollowsChain(t *testing.T) {
	step := alerr.Wrap(alerr.ErrStepFailed, errors.New("no such column: phone"), "step failed").
		With("step", "copy_phone")
	outer := alerr.Wrap(alerr.ErrMigrationFailed, step, "migration failed").
		WithVersion(20240301090000, "relocate_operator_phone")

	got := FormatError(fmt.Errorf("migrate: %w", outer))

	for _, want := range []string{
		"error[E3001]: migration failed",
		"| version: 20240301090000",
		"caused by[E3005]: step failed",
		"| step: copy_phone",
		"cause: no such column: phone",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatMessages(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{FormatWarning("w"), "warning: w\n"},
		{FormatNote("n"), "note: n\n"},
		{FormatHelp("h"), "help: h\n"},
		{FormatSuccess("s"), "✓ s\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
