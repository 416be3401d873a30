package sql

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/sheetflow/pkg/batch/core/tx"
)

// RepositoryParams defines the dependencies of the repository providers.
type RepositoryParams struct {
	fx.In
	DBResolver coreAdapter.ResourceConnectionResolver
	Cfg        *config.Config
}

// storeDBName returns the connection the store lives on, "sheetflow" by default.
func storeDBName(cfg *config.Config) string {
	if name := cfg.Sheetflow.Infrastructure.StoreDBRef; name != "" {
		return name
	}
	return "sheetflow"
}

// NewLeaseRepository is the fx provider of repository.LeaseRepository.
func NewLeaseRepository(p RepositoryParams) repository.LeaseRepository {
	return NewSQLLeaseRepository(p.DBResolver, storeDBName(p.Cfg))
}

// NewLedgerRepository is the fx provider of repository.LedgerRepository.
func NewLedgerRepository(p RepositoryParams) repository.LedgerRepository {
	return NewSQLLedgerRepository(p.DBResolver, storeDBName(p.Cfg))
}

// NewRecordRepository is the fx provider of repository.RecordRepository.
func NewRecordRepository(p RepositoryParams) repository.RecordRepository {
	return NewSQLRecordRepository(p.DBResolver, storeDBName(p.Cfg))
}

// NewStoreTransactionManager returns the transaction manager of the store connection.
func NewStoreTransactionManager(p RepositoryParams, factory tx.TransactionManagerFactory) (tx.TransactionManager, error) {
	name := storeDBName(p.Cfg)
	conn, err := p.DBResolver.ResolveConnection(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store connection '%s': %w", name, err)
	}
	return factory.NewTransactionManager(conn), nil
}

// Module provides the SQL repositories and the store transaction manager.
var Module = fx.Options(
	fx.Provide(
		NewLeaseRepository,
		NewLedgerRepository,
		NewRecordRepository,
		NewStoreTransactionManager,
	),
)
