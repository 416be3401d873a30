package postgres

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
)

// Module contributes the PostgreSQL provider to the db_providers group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
		),
	),
)
