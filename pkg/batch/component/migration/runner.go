package migration

import (
	"context"
	"fmt"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	"github.com/tigerroll/sheetflow/pkg/batch/component/migration/filesystem"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// Runner migrates the store connection and reopens it afterwards.
type Runner struct {
	dbResolver       database.DBConnectionResolver
	dbProviders      map[string]database.DBProvider
	migratorProvider MigratorProvider
	migrationFS      fs.FS
	dbName           string
}

// RunnerParams defines the dependencies of NewRunner.
type RunnerParams struct {
	fx.In
	DBResolver       database.DBConnectionResolver
	DBProviders      []database.DBProvider `group:"db_providers"`
	MigratorProvider MigratorProvider
	MigrationFS      fs.FS `name:"storeMigrationsFS"`
	Cfg              *config.Config
}

// NewRunner creates a Runner for the configured store connection.
func NewRunner(p RunnerParams) *Runner {
	providers := make(map[string]database.DBProvider, len(p.DBProviders))
	for _, provider := range p.DBProviders {
		providers[provider.Type()] = provider
	}
	return NewRunnerFor(p.DBResolver, providers, p.MigratorProvider, p.MigrationFS, p.Cfg.Sheetflow.Infrastructure.StoreDBRef)
}

// NewRunnerFor creates a Runner without fx.
func NewRunnerFor(dbResolver database.DBConnectionResolver, providers map[string]database.DBProvider, migratorProvider MigratorProvider, migrationFS fs.FS, dbName string) *Runner {
	return &Runner{
		dbResolver:       dbResolver,
		dbProviders:      providers,
		migratorProvider: migratorProvider,
		migrationFS:      migrationFS,
		dbName:           dbName,
	}
}

// Up applies pending migrations to the store.
func (r *Runner) Up(ctx context.Context) error {
	return r.run(ctx, func(m Migrator, path string) error {
		return m.Up(ctx, r.migrationFS, path, MigrationsTable)
	})
}

// Down rolls the store schema back completely.
func (r *Runner) Down(ctx context.Context) error {
	return r.run(ctx, func(m Migrator, path string) error {
		return m.Down(ctx, r.migrationFS, path, MigrationsTable)
	})
}

// Version returns the applied schema version.
func (r *Runner) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = r.run(ctx, func(m Migrator, path string) error {
		var innerErr error
		version, dirty, innerErr = m.Version(ctx, r.migrationFS, path, MigrationsTable)
		return innerErr
	})
	return version, dirty, err
}

func (r *Runner) run(ctx context.Context, fn func(m Migrator, path string) error) error {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return fmt.Errorf("failed to resolve store connection '%s': %w", r.dbName, err)
	}
	path, err := filesystem.PathFor(conn.Type())
	if err != nil {
		return err
	}

	runErr := fn(r.migratorProvider.NewMigrator(conn), path)

	if provider, ok := r.dbProviders[conn.Type()]; ok {
		if _, reconnectErr := provider.ForceReconnect(r.dbName); reconnectErr != nil {
			logger.Errorf("Failed to reopen connection '%s' after migration: %v", r.dbName, reconnectErr)
			if runErr == nil {
				runErr = reconnectErr
			}
		}
	}
	return runErr
}
