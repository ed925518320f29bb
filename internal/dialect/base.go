package dialect

import (
	"strings"

	"github.com/hlop3z/strata/internal/alerr"
)

// quoteIdentDoubleQuote quotes an identifier with double quotes, escaping embedded quotes.
func quoteIdentDoubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// writeQuotedList writes comma-separated quoted identifiers to the builder.
func writeQuotedList(b *strings.Builder, items []string, quote func(string) string) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(item))
	}
}

// columnDefSQL renders a single column definition.
func columnDefSQL(d Dialect, col ColumnDef) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(d.ColumnType(col.Type))

	// Serial types carry their own PRIMARY KEY clause.
	if col.PrimaryKey && col.Type != Serial {
		b.WriteString(" PRIMARY KEY")
	}
	if col.NotNull && !col.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if col.Unique {
		b.WriteString(" UNIQUE")
	}
	if col.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.Default)
	}
	if col.References != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(col.References)
		if col.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(col.OnDelete)
		}
	}
	return b.String()
}

// createTableSQL is the shared CREATE TABLE implementation.
func createTableSQL(d Dialect, table string, columns []ColumnDef, constraints []string) (string, error) {
	if len(columns) == 0 {
		return "", alerr.New(alerr.EInternalError, "table has no columns").WithTable(table)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.QuoteIdent(table))
	b.WriteString(" (\n")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(columnDefSQL(d, col))
	}
	for _, c := range constraints {
		b.WriteString(",\n    ")
		b.WriteString(c)
	}
	b.WriteString("\n)")
	return b.String(), nil
}

// createIndexSQL is the shared CREATE INDEX implementation.
func createIndexSQL(d Dialect, idx IndexDef) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(d.QuoteIdent(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(d.QuoteIdent(idx.Table))
	b.WriteString(" (")
	writeQuotedList(&b, idx.Columns, d.QuoteIdent)
	b.WriteString(")")
	return b.String()
}

// rebind rewrites each ? placeholder into placeholder(n), skipping quoted literals.
func rebind(query string, placeholder func(int) string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '?' && !inSingle && !inDouble:
			n++
			b.WriteString(placeholder(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
