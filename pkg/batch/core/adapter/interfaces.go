// Package adapter declares the resource abstractions shared by the database and storage adapters.
package adapter

import (
	"context"
)

// ResourceConnection represents a named connection to an external resource (database, object storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the backend type (e.g. "postgres", "local", "gcs").
	Type() string
	// Name returns the configured connection name (e.g. "sheetflow", "landing").
	Name() string
}

// ResourceProvider hands out connections of one backend type.
type ResourceProvider interface {
	GetConnection(name string) (ResourceConnection, error)
	CloseAll() error
	Type() string
	Name() string
}

// ResourceConnectionResolver resolves a live connection by name.
type ResourceConnectionResolver interface {
	// ResolveConnection returns a connection that is valid at call time, reconnecting if needed.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)

	// ResolveConnectionName picks the connection name serving a tenant.
	// Implementations return defaultName when no tenant-specific routing is configured.
	ResolveConnectionName(ctx context.Context, tenantID string, defaultName string) (string, error)
}
