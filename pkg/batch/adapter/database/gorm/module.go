package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
)

// Module provides the connection resolver and the transaction manager factory.
// Concrete providers come from the dialect packages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Provide(func(r *GormDBConnectionResolver) coreAdapter.ResourceConnectionResolver { return r }),
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Invoke(registerCloseHook),
)

func registerCloseHook(lc fx.Lifecycle, resolver *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return resolver.CloseAll()
		},
	})
}
