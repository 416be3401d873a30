// Package storage declares the object storage abstractions the pipeline stages
// read input files from and write exports to.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
)

// ErrObjectNotFound is returned by Download and Stat for a missing object.
var ErrObjectNotFound = errors.New("storage object not found")

// ProviderGroup is the fx value group collecting every StorageProvider.
const ProviderGroup = "storage_providers"

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name    string
	Size    int64
	Updated time.Time
}

// StorageExecutor is the set of object operations a stage may issue.
// An empty bucket means the connection's configured bucket.
type StorageExecutor interface {
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download returns the object's content. The caller closes it.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix, in lexical order.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes the object. A missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	Stat(ctx context.Context, bucket, objectName string) (ObjectInfo, error)
}

// StorageConnection is a named, live storage connection.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}

// StorageProvider opens and caches connections of one storage type.
type StorageProvider interface {
	GetConnection(name string) (StorageConnection, error)
	CloseAll() error
	Type() string
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves storage connections by name.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
