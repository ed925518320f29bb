package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

func unitDetails(u UnitRow) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf(TagLabel+"Version:"+TagValue+" %d\n", u.Version))
	b.WriteString(fmt.Sprintf(TagLabel+"Name:"+TagValue+" %s\n", tview.Escape(u.Name)))

	stateTag := TagLabel
	switch u.State {
	case "applied":
		stateTag = TagSuccess
	case "missing":
		stateTag = TagError
	}
	b.WriteString(fmt.Sprintf(TagLabel+"State:"+stateTag+" %s"+TagValue+"\n", u.State))

	if !u.AppliedAt.IsZero() {
		b.WriteString(fmt.Sprintf(TagLabel+"Applied:"+TagValue+" %s\n", u.AppliedAt.Format("2006-01-02 15:04:05")))
	}
	if !u.Reversible {
		b.WriteString(TagError + "Not reversible" + TagValue + "\n")
	}
	if u.Description != "" {
		b.WriteString("\n" + tview.Escape(u.Description) + "\n")
	}
	return b.String()
}

func verifyText(violations []string) string {
	if len(violations) == 0 {
		return TagSuccess + "✓ No violations" + TagValue + "\n\n" +
			TagMuted + "Every user has exactly the profiles its role requires." + TagReset
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf(TagError+"✗ %d violation(s)"+TagValue+"\n\n", len(violations)))
	for _, v := range violations {
		b.WriteString("  " + tview.Escape(v) + "\n")
	}
	b.WriteString("\n" + TagMuted + "Run `strata repair` to realign profiles." + TagReset)
	return b.String()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
