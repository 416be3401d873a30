// Package tx abstracts transactions so repositories run the same statements
// with or without an enclosing transaction.
package tx

import (
	"context"
	"database/sql"

	"github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
)

// TxExecutor is the set of statements a repository may issue.
// It is implemented by both a plain database connection and an open Tx.
type TxExecutor interface {
	// ExecuteUpdate performs INSERT ("CREATE"), UPDATE or DELETE on model.
	// query holds AND-combined equality conditions for UPDATE and DELETE.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model and resolves conflicts on conflictColumns.
	// An empty updateColumns turns the statement into ON CONFLICT DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteUpdateColumns sets values on every row of tableName matching query.
	// A slice value in query becomes an IN condition.
	ExecuteUpdateColumns(ctx context.Context, tableName string, query map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteDeleteWhere deletes rows of tableName matching a raw where clause.
	ExecuteDeleteWhere(ctx context.Context, model interface{}, tableName string, where string, args ...interface{}) (rowsAffected int64, err error)

	// ExecuteQuery loads every row matching query into target.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced is ExecuteQuery with ordering and a limit (limit <= 0 means none).
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// ExecuteQueryWhere loads rows matching a raw where clause.
	ExecuteQueryWhere(ctx context.Context, target interface{}, where string, args []interface{}, orderBy string) error

	// Count counts the rows of model's table matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// IsDuplicateKeyError reports whether err is a unique constraint violation.
	IsDuplicateKeyError(err error) bool
	// IsTableNotExistError reports whether err means the schema is not migrated.
	IsTableNotExistError(err error) bool
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint within the transaction.
	Savepoint(name string) error
	// RollbackToSavepoint undoes changes made after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages begin, commit and rollback.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates a TransactionManager bound to a connection.
type TransactionManagerFactory interface {
	NewTransactionManager(conn adapter.ResourceConnection) TransactionManager
}

type ctxKey struct{}

// WithTx returns a copy of ctx carrying t. Repositories called with the
// returned context run their statements inside t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(Tx)
	return t, ok && t != nil
}
