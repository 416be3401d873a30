package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/component/migration/filesystem"
)

// Module provides the migration Runner and the embedded store schema.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	fx.Provide(NewRunner),
	filesystem.Module,
)
