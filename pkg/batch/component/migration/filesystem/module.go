package filesystem

import (
	"go.uber.org/fx"
)

// StoreMigrationsFSTag is the fx name of the embedded store migrations.
const StoreMigrationsFSTag = `name:"storeMigrationsFS"`

// Module provides the embedded store migrations.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		ProvideStoreMigrationsFS,
		fx.ResultTags(StoreMigrationsFSTag),
	)),
)
