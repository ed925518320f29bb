package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hlop3z/strata/internal/alerr"
)

// FormatError formats an error for CLI display in Cargo/rustc style.
// Coded errors show their context, notes and helps; every coded error
// further down the chain is rendered as a "caused by" block.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ae *alerr.Error
	if !errors.As(err, &ae) {
		return formatGenericError(err)
	}

	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(ae.GetCode())))
	b.WriteString("]: ")
	b.WriteString(ae.GetMessage())
	b.WriteString("\n")
	writeCoded(&b, ae)
	return b.String()
}

// writeCoded renders details, notes and helps of e and then follows its cause.
func writeCoded(b *strings.Builder, e *alerr.Error) {
	details := contextDetails(e.GetContext())
	if len(details) > 0 {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString("\n")
		for _, detail := range details {
			b.WriteString("   ")
			b.WriteString(Pipe())
			b.WriteString(" ")
			b.WriteString(detail)
			b.WriteString("\n")
		}
	}

	for _, note := range e.Notes() {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString("\n")
		b.WriteString(Note("note"))
		b.WriteString(": ")
		b.WriteString(note)
		b.WriteString("\n")
	}

	for _, help := range e.Helps() {
		b.WriteString(Help("help"))
		b.WriteString(": ")
		b.WriteString(help)
		b.WriteString("\n")
	}

	cause := e.GetCause()
	if cause == nil {
		return
	}

	b.WriteString("   ")
	b.WriteString(Pipe())
	b.WriteString("\n")

	var inner *alerr.Error
	if next, ok := cause.(*alerr.Error); ok {
		inner = next
	}
	if inner == nil {
		b.WriteString(Note("cause"))
		b.WriteString(": ")
		b.WriteString(cause.Error())
		b.WriteString("\n")
		return
	}

	b.WriteString(Note("caused by"))
	b.WriteString("[")
	b.WriteString(Code(string(inner.GetCode())))
	b.WriteString("]: ")
	b.WriteString(inner.GetMessage())
	b.WriteString("\n")
	writeCoded(b, inner)
}

// contextDetails returns "key: value" lines sorted by key, leaving out
// notes and helps which are rendered on their own.
func contextDetails(ctx map[string]any) []string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if k == "notes" || k == "helps" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, k := range keys {
		details = append(details, fmt.Sprintf("%s: %v", k, ctx[k]))
	}
	return details
}

// formatGenericError formats a non-coded error.
func formatGenericError(err error) string {
	return Error("error") + ": " + err.Error() + "\n"
}

// FormatWarning formats a warning message.
func FormatWarning(msg string) string {
	return Warning("warning") + ": " + msg + "\n"
}

// FormatNote formats a note message.
func FormatNote(msg string) string {
	return Note("note") + ": " + msg + "\n"
}

// FormatHelp formats a help message.
func FormatHelp(msg string) string {
	return Help("help") + ": " + msg + "\n"
}

// FormatSuccess formats a success message with a check mark.
func FormatSuccess(msg string) string {
	return Success("✓") + " " + msg + "\n"
}
