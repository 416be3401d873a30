package local_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

func newConn(t *testing.T) (storageAdapter.StorageConnection, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: dir, BucketName: "landing"}, "landing")
	require.NoError(t, err)
	return conn, dir
}

func TestLocalAdapter_UploadDownloadStat(t *testing.T) {
	ctx := context.Background()
	conn, dir := newConn(t)

	require.NoError(t, conn.Upload(ctx, "", "incoming/t1/sheet.csv", strings.NewReader("id,name\n1,a\n"), "text/csv"))
	assert.FileExists(t, filepath.Join(dir, "landing", "incoming", "t1", "sheet.csv"))

	r, err := conn.Download(ctx, "", "incoming/t1/sheet.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n", string(body))

	info, err := conn.Stat(ctx, "", "incoming/t1/sheet.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
	assert.Equal(t, "incoming/t1/sheet.csv", info.Name)
}

func TestLocalAdapter_MissingObject(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConn(t)

	_, err := conn.Download(ctx, "", "nope.csv")
	assert.True(t, errors.Is(err, storageAdapter.ErrObjectNotFound))

	_, err = conn.Stat(ctx, "", "nope.csv")
	assert.True(t, errors.Is(err, storageAdapter.ErrObjectNotFound))

	assert.NoError(t, conn.DeleteObject(ctx, "", "nope.csv"))
}

func TestLocalAdapter_ListObjectsSortedByName(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConn(t)

	for _, name := range []string{"incoming/t1/b.csv", "incoming/t1/a.csv", "incoming/t2/c.csv", "archive/t1/z.csv"} {
		require.NoError(t, conn.Upload(ctx, "", name, strings.NewReader("x"), "text/csv"))
	}

	var got []string
	err := conn.ListObjects(ctx, "", "incoming/", func(name string) error {
		got = append(got, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"incoming/t1/a.csv", "incoming/t1/b.csv", "incoming/t2/c.csv"}, got)

	stop := errors.New("stop")
	calls := 0
	err = conn.ListObjects(ctx, "", "", func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestLocalAdapter_ListEmptyBucket(t *testing.T) {
	conn, _ := newConn(t)
	err := conn.ListObjects(context.Background(), "other", "", func(string) error {
		t.Fatal("unexpected object")
		return nil
	})
	assert.NoError(t, err)
}

func TestLocalAdapter_RejectsPathEscape(t *testing.T) {
	conn, _ := newConn(t)
	err := conn.Upload(context.Background(), "", "../../etc/passwd", strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes base_dir")
}

func TestLocalAdapter_BaseDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: file}, "bad")
	assert.Error(t, err)

	_, err = local.NewLocalAdapter(storageConfig.StorageConfig{}, "bad")
	assert.Error(t, err)
}

func TestResolver_ResolvesLocalConnection(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Sheetflow.AdapterConfigs["storage"] = map[string]interface{}{
		"landing": map[string]interface{}{"type": "local", "base_dir": t.TempDir(), "bucket_name": "landing"},
		"remote":  map[string]interface{}{"type": "s3"},
	}
	resolver := storageAdapter.NewConnectionResolver(storageAdapter.ResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewProvider(cfg)},
		Cfg:       cfg,
	})
	defer resolver.CloseAll()

	conn, err := resolver.ResolveStorageConnection(context.Background(), "landing")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Type())
	assert.Equal(t, "landing", conn.Name())

	again, err := resolver.ResolveStorageConnection(context.Background(), "landing")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = resolver.ResolveStorageConnection(context.Background(), "remote")
	assert.ErrorContains(t, err, "no storage provider for type 's3'")

	_, err = resolver.ResolveStorageConnection(context.Background(), "missing")
	assert.Error(t, err)
}
