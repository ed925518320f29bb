package alerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Constructor Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    Code
		message string
	}{
		{"config error", ErrConfigInvalid, "lock_timeout must be positive"},
		{"migration error", ErrMigrationFailed, "migration failed to execute"},
		{"step error", ErrStepFailed, "step failed"},
		{"SQL error", ErrSQLExecution, "SQL statement failed"},
		{"reshape error", ErrAmbiguousConsolidation, "sources disagree"},
		{"introspection error", ErrIntrospection, "catalog query failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.GetCode() != tt.code {
				t.Errorf("code = %v, want %v", err.GetCode(), tt.code)
			}
			if err.GetMessage() != tt.message {
				t.Errorf("message = %v, want %v", err.GetMessage(), tt.message)
			}
			if err.GetCause() != nil {
				t.Error("expected nil cause for New()")
			}
			if err.GetStack() == "" {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("wrap existing error", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := Wrap(ErrSQLExecution, cause, "failed to execute query")

		if err.GetCode() != ErrSQLExecution {
			t.Errorf("code = %v, want %v", err.GetCode(), ErrSQLExecution)
		}
		if err.GetCause() != cause {
			t.Error("cause should be the wrapped error")
		}
	})

	t.Run("wrap nil behaves like New", func(t *testing.T) {
		err := Wrap(ErrSQLExecution, nil, "no cause")
		if err.GetCause() != nil {
			t.Error("expected nil cause")
		}
		if err.GetMessage() != "no cause" {
			t.Errorf("message = %q", err.GetMessage())
		}
	})
}

func TestWrapf(t *testing.T) {
	cause := errors.New("boom")
	err := Wrapf(ErrStepFailed, cause, "step %d failed", 3)
	if err.GetMessage() != "step 3 failed" {
		t.Errorf("message = %q, want %q", err.GetMessage(), "step 3 failed")
	}
}

// -----------------------------------------------------------------------------
// Context Tests
// -----------------------------------------------------------------------------

func TestContextHelpers(t *testing.T) {
	err := New(ErrStepFailed, "test").
		With("key", "value").
		WithTable("users").
		WithColumn("phone").
		WithSQL("SELECT 1").
		WithVersion(20240301090000, "relocate_operator_phone")

	ctx := err.GetContext()
	want := map[string]any{
		"key":     "value",
		"table":   "users",
		"column":  "phone",
		"sql":     "SELECT 1",
		"version": int64(20240301090000),
		"name":    "relocate_operator_phone",
	}
	if len(ctx) != len(want) {
		t.Fatalf("expected %d context entries, got %d: %v", len(want), len(ctx), ctx)
	}
	for k, v := range want {
		if ctx[k] != v {
			t.Errorf("context[%q] = %v, want %v", k, ctx[k], v)
		}
	}
}

func TestWithVersionOmitsEmptyName(t *testing.T) {
	err := New(ErrMigrationFailed, "x").WithVersion(1, "")
	if _, ok := err.GetContext()["name"]; ok {
		t.Error("name should not be set when empty")
	}
}

func TestNotesAndHelps(t *testing.T) {
	err := New(ErrLockTimeout, "lock busy").
		WithNote("held by host-a").
		WithNote("since 10:00").
		WithHelp("run 'strata lock release' if the holder is gone")

	if got := err.Notes(); len(got) != 2 || got[1] != "since 10:00" {
		t.Errorf("Notes() = %v", got)
	}
	if got := err.Helps(); len(got) != 1 {
		t.Errorf("Helps() = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Error Output Format Tests
// -----------------------------------------------------------------------------

func TestErrorFormat(t *testing.T) {
	t.Run("basic error format", func(t *testing.T) {
		errStr := New(ErrStepFailed, "step failed").Error()
		if !strings.HasPrefix(errStr, "[E3005] step failed") {
			t.Errorf("error should start with code and message, got: %s", errStr)
		}
	})

	t.Run("error with cause", func(t *testing.T) {
		err := Wrap(ErrSQLConnection, errors.New("connection timeout"), "failed to connect")
		if !strings.Contains(err.Error(), "cause: connection timeout") {
			t.Errorf("error should contain cause, got: %s", err.Error())
		}
	})

	t.Run("context keys are sorted", func(t *testing.T) {
		errStr := New(ErrConfigInvalid, "test").
			With("zebra", 1).
			With("alpha", 2).
			With("middle", 3).
			Error()

		alphaIdx := strings.Index(errStr, "alpha:")
		middleIdx := strings.Index(errStr, "middle:")
		zebraIdx := strings.Index(errStr, "zebra:")
		if alphaIdx == -1 || middleIdx == -1 || zebraIdx == -1 {
			t.Fatalf("expected all keys to be present, got: %s", errStr)
		}
		if !(alphaIdx < middleIdx && middleIdx < zebraIdx) {
			t.Errorf("context keys should be sorted alphabetically, got: %s", errStr)
		}
	})
}

// -----------------------------------------------------------------------------
// Matching Tests
// -----------------------------------------------------------------------------

func TestErrorIsMethod(t *testing.T) {
	a := New(ErrStepFailed, "first")
	b := New(ErrStepFailed, "second")
	c := New(ErrMigrationFailed, "other")

	if !a.Is(b) {
		t.Error("errors with same code should match")
	}
	if a.Is(c) {
		t.Error("errors with different codes should not match")
	}
	if a.Is(nil) {
		t.Error("error should not match nil")
	}
	if a.Is(errors.New("plain")) {
		t.Error("coded error should not match a plain error")
	}
	if !errors.Is(a, b) {
		t.Error("errors.Is should match errors with same code")
	}
}

func TestIsWalksChain(t *testing.T) {
	inner := New(ErrPartialApplication, "partial")
	mid := fmt.Errorf("context: %w", inner)
	outer := Wrap(ErrMigrationFailed, mid, "outer")

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"outer code", outer, ErrMigrationFailed, true},
		{"inner code through fmt wrap", outer, ErrPartialApplication, true},
		{"absent code", outer, ErrLockTimeout, false},
		{"nil error", nil, ErrMigrationFailed, false},
		{"standard error", errors.New("standard"), ErrMigrationFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}

	if found := Find(outer, ErrPartialApplication); found != inner {
		t.Errorf("Find() = %v, want inner error", found)
	}
}

func TestGetErrorCode(t *testing.T) {
	inner := New(ErrSQLExecution, "inner")
	outer := Wrap(ErrMigrationFailed, inner, "outer")

	if code := GetErrorCode(outer); code != ErrMigrationFailed {
		t.Errorf("code = %v, want outermost %v", code, ErrMigrationFailed)
	}
	if code := GetErrorCode(nil); code != "" {
		t.Errorf("code = %v, want empty", code)
	}
	if code := GetErrorCode(errors.New("standard")); code != "" {
		t.Errorf("code = %v, want empty", code)
	}
	if HasCode(errors.New("standard")) {
		t.Error("standard error has no code")
	}
	if !HasCode(inner) {
		t.Error("coded error should report HasCode")
	}
}

func TestWrapHelpers(t *testing.T) {
	cause := errors.New("syntax error")

	sqlErr := WrapSQL(cause, "copy phone values", "users")
	if sqlErr.GetCode() != ErrSQLExecution || sqlErr.GetMessage() != "failed to copy phone values" {
		t.Errorf("WrapSQL() = %v", sqlErr)
	}
	if sqlErr.GetContext()["table"] != "users" {
		t.Errorf("table context = %v", sqlErr.GetContext()["table"])
	}

	ie := WrapIntrospection(cause, "check column", "", "phone")
	if _, ok := ie.GetContext()["table"]; ok {
		t.Error("empty table should not be recorded")
	}
	if ie.GetContext()["column"] != "phone" {
		t.Errorf("column context = %v", ie.GetContext()["column"])
	}
	if !errors.Is(ie, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestErrorCodeCategories(t *testing.T) {
	categories := map[string][]Code{
		"E1": {ErrConfigInvalid, ErrPolicyInvalid},
		"E3": {ErrMigrationFailed, ErrMigrationNotFound, ErrMigrationDuplicate, ErrMigrationIrreversible,
			ErrStepFailed, ErrOutOfOrderRevert, ErrPartialApplication, ErrLockTimeout},
		"E4": {ErrSQLExecution, ErrSQLConnection, ErrSQLTransaction},
		"E5": {ErrAmbiguousConsolidation, ErrRelocationUncovered},
		"E6": {ErrIntrospection, EUnsupportedDialect},
		"E9": {EInternalError},
	}
	seen := make(map[Code]bool)
	for prefix, codes := range categories {
		for _, code := range codes {
			if !strings.HasPrefix(string(code), prefix) {
				t.Errorf("code %v should start with %s", code, prefix)
			}
			if seen[code] {
				t.Errorf("code %v is declared twice", code)
			}
			seen[code] = true
		}
	}
}
