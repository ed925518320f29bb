package drift

import (
	"fmt"
	"sort"
	"strings"
)

// FormatComparison renders a comparison for CLI output and test failures.
func FormatComparison(c *HashComparison) string {
	if c == nil {
		return "No comparison available."
	}
	if c.Match {
		return fmt.Sprintf("Schema unchanged (%s)\n", ShortHash(c.ActualRoot))
	}

	var b strings.Builder
	b.WriteString("Schema drift detected\n\n")
	fmt.Fprintf(&b, "  Expected hash: %s\n", ShortHash(c.ExpectedRoot))
	fmt.Fprintf(&b, "  Actual hash:   %s\n", ShortHash(c.ActualRoot))

	if len(c.MissingTables) > 0 {
		b.WriteString("\n  Missing tables:\n")
		for _, name := range c.MissingTables {
			fmt.Fprintf(&b, "    - %s\n", name)
		}
	}
	if len(c.ExtraTables) > 0 {
		b.WriteString("\n  Extra tables:\n")
		for _, name := range c.ExtraTables {
			fmt.Fprintf(&b, "    + %s\n", name)
		}
	}

	names := make([]string, 0, len(c.TableDiffs))
	for name := range c.TableDiffs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		diff := c.TableDiffs[name]
		fmt.Fprintf(&b, "\n  %s:\n", name)
		for _, col := range diff.MissingColumns {
			fmt.Fprintf(&b, "    - %s\n", col)
		}
		for _, col := range diff.ExtraColumns {
			fmt.Fprintf(&b, "    + %s\n", col)
		}
		for _, col := range diff.ModifiedColumns {
			fmt.Fprintf(&b, "    ~ %s\n", col)
		}
	}
	return b.String()
}

// ShortHash returns the first 12 characters of a hash for display.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
