package migrations

import (
	"github.com/hlop3z/strata/internal/dialect"
	"github.com/hlop3z/strata/internal/engine"
	"github.com/hlop3z/strata/internal/reshape"
	"github.com/hlop3z/strata/internal/roles"
)

func userRef() dialect.ColumnDef {
	return dialect.ColumnDef{
		Name:       "user_id",
		Type:       dialect.Text,
		NotNull:    true,
		References: "users(id)",
		OnDelete:   "CASCADE",
	}
}

func createUsers() engine.Unit {
	return engine.Unit{
		Version:     VersionCreateUsers,
		Name:        "create_users",
		Description: "users table with a unique email",
		Forward: []engine.Step{
			engine.CreateTable("users", []dialect.ColumnDef{
				{Name: "id", Type: dialect.Text, PrimaryKey: true},
				{Name: "email", Type: dialect.Text, NotNull: true},
				{Name: "name", Type: dialect.Text},
				{Name: "role", Type: dialect.Text},
				{Name: "phone", Type: dialect.Text},
				{Name: "created_at", Type: dialect.Timestamp, Default: "CURRENT_TIMESTAMP"},
			}),
			engine.CreateIndex(dialect.IndexDef{Name: "users_email_key", Table: "users", Columns: []string{"email"}, Unique: true}),
		},
		Backward: []engine.Step{
			engine.DropIndex("users_email_key"),
			engine.DropTable("users"),
		},
	}
}

func createProfiles() engine.Unit {
	return engine.Unit{
		Version:     VersionCreateProfiles,
		Name:        "create_profiles",
		Description: "tenant and operator profile tables, one row per user",
		Forward: []engine.Step{
			engine.CreateTable("tenant_profiles", []dialect.ColumnDef{
				{Name: "id", Type: dialect.Serial, PrimaryKey: true},
				userRef(),
				{Name: "full_name", Type: dialect.Text},
				{Name: "move_in_date", Type: dialect.Timestamp},
			}),
			engine.CreateIndex(dialect.IndexDef{Name: "tenant_profiles_user_id_key", Table: "tenant_profiles", Columns: []string{"user_id"}, Unique: true}),
			engine.CreateTable("operator_profiles", []dialect.ColumnDef{
				{Name: "id", Type: dialect.Serial, PrimaryKey: true},
				userRef(),
				{Name: "full_name", Type: dialect.Text},
				{Name: "company_name", Type: dialect.Text},
				{Name: "phone", Type: dialect.Text},
			}),
			engine.CreateIndex(dialect.IndexDef{Name: "operator_profiles_user_id_key", Table: "operator_profiles", Columns: []string{"user_id"}, Unique: true}),
		},
		Backward: []engine.Step{
			engine.DropTable("operator_profiles"),
			engine.DropTable("tenant_profiles"),
		},
	}
}

func createPreferences() engine.Unit {
	return engine.Unit{
		Version:     VersionCreatePreferences,
		Name:        "create_preferences",
		Description: "tenant search preferences keyed by user",
		Forward: []engine.Step{
			engine.CreateTable("preferences", []dialect.ColumnDef{
				{Name: "user_id", Type: dialect.Text, PrimaryKey: true, References: "users(id)", OnDelete: "CASCADE"},
				{Name: "property_type", Type: dialect.Text},
				{Name: "max_budget", Type: dialect.Integer},
			}),
		},
		Backward: []engine.Step{
			engine.DropTable("preferences"),
		},
	}
}

func promotePropertyTypes() engine.Unit {
	p := reshape.Promotion{Table: "preferences", Column: "property_type"}
	return engine.Unit{
		Version:     VersionPromoteTypes,
		Name:        "promote_property_types",
		Description: "preferences.property_type becomes a list of property types",
		Forward:     p.Forward(),
		Backward:    p.Backward(),
		Lossy:       "lists with more than one entry keep only the first",
	}
}

func partitionProfiles(policy roles.Policy) engine.Unit {
	idx := dialect.IndexDef{Name: "users_role_idx", Table: policy.Table, Columns: []string{policy.RoleColumn}}
	return engine.Unit{
		Version:     VersionPartitionProfiles,
		Name:        "partition_profiles_by_role",
		Description: "default unset roles and align profile rows with each user's role",
		Forward: append([]engine.Step{engine.CreateIndex(idx)},
			reshape.Partition{Policy: policy}.Forward()...),
		Backward: []engine.Step{
			engine.DropIndex(idx.Name),
		},
		Lossy: "defaulted roles and created or deleted profile rows are kept",
	}
}

func relocateOperatorPhone() engine.Unit {
	r := reshape.Relocation{
		From: reshape.ColumnRef{Table: "operator_profiles", Column: "phone"},
		To:   reshape.ColumnRef{Table: "users", Column: "phone"},
		Link: reshape.Link{Principal: "users", Key: "id", Satellite: "operator_profiles", Column: "user_id"},
	}
	return engine.Unit{
		Version:     VersionRelocatePhone,
		Name:        "relocate_operator_phone",
		Description: "operator phone numbers move onto the user",
		Forward:     r.Forward(),
		Backward:    r.Backward(),
		Lossy:       "operator profiles get the user's phone back even when it never lived there; conflicting profile phones are lost",
	}
}

func consolidateDisplayName() engine.Unit {
	c := reshape.Consolidation{
		Target: reshape.ColumnRef{Table: "users", Column: "display_name"},
		Key:    "id",
		Sources: []reshape.Source{
			{ColumnRef: reshape.ColumnRef{Table: "users", Column: "name"}},
			{ColumnRef: reshape.ColumnRef{Table: "tenant_profiles", Column: "full_name"}, Link: "user_id"},
			{ColumnRef: reshape.ColumnRef{Table: "operator_profiles", Column: "full_name"}, Link: "user_id"},
		},
		Policy: reshape.FirstNonNull,
		Retire: reshape.RetireDrop,
	}
	return engine.Unit{
		Version:     VersionConsolidateName,
		Name:        "consolidate_display_name",
		Description: "one display name per user from users and profile names",
		Forward:     c.Forward(),
		Backward:    c.Backward(),
		Lossy:       "the display name returns to users.name; profile full names stay empty",
	}
}
