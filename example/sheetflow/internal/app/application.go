// Package app assembles the sheetflow fx container.
package app

import (
	"context"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/orchestrator"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/sheetflow/pkg/batch/component/export"
	"github.com/tigerroll/sheetflow/pkg/batch/component/migration"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	coreMetrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	infraMetrics "github.com/tigerroll/sheetflow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// DBProviderMap maps DB_ADAPTORS entries to provider constructors.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DBProviderOptions registers the providers named in DB_ADAPTORS
// (comma-separated, all of them when unset).
func DBProviderOptions() []fx.Option {
	adaptors := os.Getenv("DB_ADAPTORS")
	if adaptors == "" {
		adaptors = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0, len(DBProviderMap))
	for _, name := range strings.Split(adaptors, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB Provider '%s' is configured but not supported. Skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))))
		logger.Debugf("DB Provider '%s' registered.", name)
	}
	return options
}

// Services is what the CLI commands work with.
type Services struct {
	fx.In

	Cfg          *config.Config
	Locks        usecase.LockManager
	Ledger       usecase.BatchLedger
	Records      usecase.RecordStore
	Purge        usecase.PurgeService
	Orchestrator *orchestrator.Orchestrator
	Scanner      *orchestrator.Scanner
	Migrations   *migration.Runner
	Storage      storage.StorageConnectionResolver
}

// Options returns the fx options of the whole application.
func Options(envFilePath string, embeddedConfig config.EmbeddedConfig, extra ...fx.Option) fx.Option {
	return fx.Options(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		logger.Module,
		config.Module,
		coreMetrics.Module,
		infraMetrics.Module,

		fx.Options(DBProviderOptions()...),
		gormadapter.Module,
		sql.Module,
		migration.Module,

		storage.Module,
		local.Module,
		gcs.Module,

		usecase.Module,
		export.Module,
		Module,
		fx.Options(extra...),
	)
}

// Start builds and starts the container and fills svc. The returned stop
// function shuts it down.
func Start(ctx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, svc *Services) (func(), error) {
	var populated Services
	application := fx.New(
		Options(envFilePath, embeddedConfig),
		fx.Invoke(func(s Services) { populated = s }),
	)
	if err := application.Err(); err != nil {
		return nil, err
	}
	if err := application.Start(ctx); err != nil {
		return nil, err
	}
	*svc = populated
	return func() {
		if err := application.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Errorf("Application stop failed: %v", err)
		}
	}, nil
}
