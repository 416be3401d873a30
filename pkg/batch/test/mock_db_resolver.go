package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	dbadapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	coreadapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
)

// MockDBConnectionResolver is a testify mock of database.DBConnectionResolver.
type MockDBConnectionResolver struct {
	mock.Mock
}

func (m *MockDBConnectionResolver) ResolveConnectionName(ctx context.Context, tenantID string, defaultName string) (string, error) {
	args := m.Called(ctx, tenantID, defaultName)
	return args.String(0), args.Error(1)
}

func (m *MockDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (dbadapter.DBConnection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(dbadapter.DBConnection), args.Error(1)
}

func (m *MockDBConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreadapter.ResourceConnection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(coreadapter.ResourceConnection), args.Error(1)
}

// SingleConnectionResolver always returns the same connection.
type SingleConnectionResolver struct {
	Conn dbadapter.DBConnection
}

// NewSingleConnectionResolver wraps conn.
func NewSingleConnectionResolver(conn dbadapter.DBConnection) *SingleConnectionResolver {
	return &SingleConnectionResolver{Conn: conn}
}

func (r *SingleConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (dbadapter.DBConnection, error) {
	return r.Conn, nil
}

func (r *SingleConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreadapter.ResourceConnection, error) {
	return r.Conn, nil
}

func (r *SingleConnectionResolver) ResolveConnectionName(ctx context.Context, tenantID string, defaultName string) (string, error) {
	return defaultName, nil
}

var (
	_ dbadapter.DBConnectionResolver = (*MockDBConnectionResolver)(nil)
	_ dbadapter.DBConnectionResolver = (*SingleConnectionResolver)(nil)
)
