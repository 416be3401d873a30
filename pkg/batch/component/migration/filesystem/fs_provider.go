package filesystem

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

//go:embed resource
var rawStoreMigrationFS embed.FS

// ProvideStoreMigrationsFS returns the embedded migrations, one directory per dialect.
func ProvideStoreMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawStoreMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for store migration FS: %v", err)
	}
	return subFS
}

// PathFor returns the migration directory of dbType.
func PathFor(dbType string) (string, error) {
	switch dbType {
	case "postgres", "mysql", "sqlite":
		return dbType, nil
	default:
		return "", fmt.Errorf("no migrations for database type: %s", dbType)
	}
}
