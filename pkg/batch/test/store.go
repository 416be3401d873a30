// Package test holds helpers shared by the sheetflow tests.
package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sheetflow/pkg/batch/component/migration"
	"github.com/tigerroll/sheetflow/pkg/batch/component/migration/filesystem"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/sheetflow/pkg/batch/core/tx"
	sqlrepo "github.com/tigerroll/sheetflow/pkg/batch/infrastructure/repository/sql"
)

// StoreDBName is the connection name used by NewSQLiteStore.
const StoreDBName = "sheetflow"

// Store is a migrated SQLite store with its repositories.
type Store struct {
	Cfg       *config.Config
	Resolver  *gormadapter.GormDBConnectionResolver
	Runner    *migration.Runner
	Leases    repository.LeaseRepository
	Ledger    repository.LedgerRepository
	Records   repository.RecordRepository
	TxManager tx.TransactionManager
}

// SQLiteConfig returns a Config whose store connection is a SQLite file at path.
// The pool is limited to one connection so writers serialize instead of
// failing with SQLITE_BUSY.
func SQLiteConfig(path string) *config.Config {
	cfg := config.NewConfig()
	cfg.Sheetflow.Infrastructure.StoreDBRef = StoreDBName
	cfg.Sheetflow.AdapterConfigs["database"] = map[string]interface{}{
		StoreDBName: map[string]interface{}{
			"type":     "sqlite",
			"database": path,
			"pool": map[string]interface{}{
				"max_open_conns": 1,
			},
		},
	}
	return cfg
}

// NewSQLiteStore opens a fresh store in t.TempDir() and migrates it.
// Connections are closed when the test ends.
func NewSQLiteStore(t testing.TB) *Store {
	t.Helper()
	return OpenSQLiteStore(t, filepath.Join(t.TempDir(), "store.db"), true)
}

// OpenSQLiteStore opens the store at path, migrating it when migrate is set.
// Opening the same path twice simulates a process restart.
func OpenSQLiteStore(t testing.TB, path string, migrate bool) *Store {
	t.Helper()

	cfg := SQLiteConfig(path)
	provider := sqlite.NewProvider(cfg)
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })

	runner := migration.NewRunnerFor(
		resolver,
		map[string]database.DBProvider{provider.Type(): provider},
		migration.NewMigratorProvider(),
		filesystem.ProvideStoreMigrationsFS(),
		StoreDBName,
	)
	if migrate {
		require.NoError(t, runner.Up(context.Background()))
	}

	return &Store{
		Cfg:       cfg,
		Resolver:  resolver,
		Runner:    runner,
		Leases:    sqlrepo.NewSQLLeaseRepository(resolver, StoreDBName),
		Ledger:    sqlrepo.NewSQLLedgerRepository(resolver, StoreDBName),
		Records:   sqlrepo.NewSQLRecordRepository(resolver, StoreDBName),
		TxManager: gormadapter.NewGormTransactionManager(resolver, StoreDBName),
	}
}
