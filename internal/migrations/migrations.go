// Package migrations holds the rental platform's schema history as
// compiled migration units.
package migrations

import (
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/roles"
)

// Unit versions, in application order.
const (
	VersionCreateUsers       int64 = 20240110090000
	VersionCreateProfiles    int64 = 20240112090000
	VersionCreatePreferences int64 = 20240115090000
	VersionPromoteTypes      int64 = 20240201090000
	VersionPartitionProfiles int64 = 20240215090000
	VersionRelocatePhone     int64 = 20240301090000
	VersionConsolidateName   int64 = 20240315090000
)

// All returns every unit. The partitioning unit follows policy.
func All(policy roles.Policy) []engine.Unit {
	return []engine.Unit{
		createUsers(),
		createProfiles(),
		createPreferences(),
		promotePropertyTypes(),
		partitionProfiles(policy),
		relocateOperatorPhone(),
		consolidateDisplayName(),
	}
}

// Registry returns a registry holding All(policy).
func Registry(policy roles.Policy) (*engine.Registry, error) {
	return engine.NewRegistry(All(policy)...)
}
