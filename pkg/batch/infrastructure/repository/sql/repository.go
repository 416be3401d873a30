// Package sql implements the repository ports on top of the database adapter.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	tx "github.com/tigerroll/sheetflow/pkg/batch/core/tx"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
)

// sqlStore holds what every repository needs to reach its connection.
type sqlStore struct {
	// dbResolver is expected to resolve to a database.DBConnection.
	dbResolver coreAdapter.ResourceConnectionResolver
	// dbName is the connection name under adapter.database.
	dbName string
	// module prefixes error messages.
	module string
}

// getDBConnection resolves the latest connection on every call so a
// reconnect done by the resolver is picked up.
func (s *sqlStore) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	connAsResource, err := s.dbResolver.ResolveConnection(ctx, s.dbName)
	if err != nil {
		return nil, exception.NewSheetError(s.module, fmt.Sprintf("Failed to resolve DB connection '%s'", s.dbName), err, false, true)
	}
	conn, ok := connAsResource.(database.DBConnection)
	if !ok {
		return nil, exception.NewSheetError(s.module, fmt.Sprintf("Resolved connection '%s' is not a database.DBConnection", s.dbName), nil, false, false)
	}
	return conn, nil
}

// getTxExecutor returns the transaction carried by ctx, or the connection.
// Reads go through it too, so a caller inside a transaction sees its own writes.
func (s *sqlStore) getTxExecutor(ctx context.Context) (tx.TxExecutor, error) {
	if t, ok := tx.FromContext(ctx); ok {
		return t, nil
	}
	return s.getDBConnection(ctx)
}

// storeError wraps a failed statement. A missing table is a deployment error
// and is not retried; anything else is treated as store unavailability.
func storeError(op, message string, executor tx.TxExecutor, err error) error {
	if executor.IsTableNotExistError(err) {
		return exception.NewSheetError(op, message+": schema not migrated", err, false, false)
	}
	return exception.NewSheetError(op, message, err, false, true)
}

// nullableTime turns a nil *time.Time into an untyped nil for column maps.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
