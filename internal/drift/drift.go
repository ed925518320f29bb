// Package drift fingerprints the live schema with a merkle tree so two
// database states can be compared cheaply and differences drilled into.
package drift

import (
	"context"

	"github.com/hlop3z/strata/internal/introspect"
)

// Snapshot reads every user table and its columns through in.
// strata's bookkeeping tables are excluded by the introspector.
func Snapshot(ctx context.Context, in introspect.Introspector) (Schema, error) {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := make(Schema, len(tables))
	for _, t := range tables {
		cols, err := in.ListColumns(ctx, t)
		if err != nil {
			return nil, err
		}
		schema[t] = cols
	}
	return schema, nil
}

// Fingerprint snapshots the live schema and hashes it.
func Fingerprint(ctx context.Context, in introspect.Introspector) (*SchemaHash, error) {
	schema, err := Snapshot(ctx, in)
	if err != nil {
		return nil, err
	}
	return ComputeSchemaHash(schema)
}

// Detect fingerprints the live schema and compares it with expected.
func Detect(ctx context.Context, in introspect.Introspector, expected *SchemaHash) (*HashComparison, error) {
	actual, err := Fingerprint(ctx, in)
	if err != nil {
		return nil, err
	}
	return CompareHashes(expected, actual), nil
}
