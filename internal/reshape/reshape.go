// Package reshape implements the data reshaping algorithms used by
// migration units: scalar-to-array promotion, column relocation, per-role
// profile partitioning and multi-source field consolidation.
//
// Every algorithm is expressed as guarded engine steps so it can be
// re-run against a database in any intermediate state. Data movement is
// set-based; rows are only read one at a time to report anomalies.
package reshape

import (
	"fmt"
	"strings"
)

// ColumnRef names a column of a table.
type ColumnRef struct {
	Table  string
	Column string
}

// String returns "table.column".
func (c ColumnRef) String() string {
	return c.Table + "." + c.Column
}

// Link describes how satellite rows point at their principal row.
type Link struct {
	// Principal is the owning table and Key its primary key column.
	Principal string
	Key       string
	// Satellite is the dependent table and Column its reference to Key.
	Satellite string
	Column    string
}

// maxSampleIDs caps how many entity ids an error or log line carries.
const maxSampleIDs = 10

// emptyCond is true when expr is NULL or the empty string.
func emptyCond(expr string) string {
	return fmt.Sprintf("(%s IS NULL OR %s = '')", expr, expr)
}

// presentCond is true when expr is neither NULL nor the empty string.
func presentCond(expr string) string {
	return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", expr, expr)
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringArgs converts strings into query arguments.
func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
