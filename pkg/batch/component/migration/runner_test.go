package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/component/migration/filesystem"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

func TestRunner_UpDownVersion(t *testing.T) {
	ctx := context.Background()
	store := test.OpenSQLiteStore(t, filepath.Join(t.TempDir(), "m.db"), false)

	version, dirty, err := store.Runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, store.Runner.Up(ctx))
	// Repeating Up is a no-op.
	require.NoError(t, store.Runner.Up(ctx))

	version, dirty, err = store.Runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// The connection was reopened after migrating and is usable.
	lease, err := store.Leases.FindLease(ctx, "T1", "processing")
	require.NoError(t, err)
	assert.Nil(t, lease)

	require.NoError(t, store.Runner.Down(ctx))
	version, _, err = store.Runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = store.Leases.FindLease(ctx, "T1", "processing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema not migrated")
}

func TestPathFor(t *testing.T) {
	for _, dbType := range []string{"postgres", "mysql", "sqlite"} {
		path, err := filesystem.PathFor(dbType)
		require.NoError(t, err)
		assert.Equal(t, dbType, path)
	}
	_, err := filesystem.PathFor("oracle")
	assert.Error(t, err)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	fsys := filesystem.ProvideStoreMigrationsFS()
	for _, dbType := range []string{"postgres", "mysql", "sqlite"} {
		for _, suffix := range []string{"up", "down"} {
			_, err := fsys.Open(dbType + "/1_create_sheet_store." + suffix + ".sql")
			assert.NoError(t, err, "%s %s", dbType, suffix)
		}
	}
}
