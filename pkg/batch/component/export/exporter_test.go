package export_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	localStorage "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/sheetflow/pkg/batch/component/export"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

type fixture struct {
	records  *usecase.DefaultRecordStore
	exporter *export.Exporter
	baseDir  string
}

func newFixture(t *testing.T, compression string) *fixture {
	t.Helper()
	store := test.NewSQLiteStore(t)
	baseDir := t.TempDir()
	store.Cfg.Sheetflow.AdapterConfigs["storage"] = map[string]interface{}{
		"landing": map[string]interface{}{"type": "local", "base_dir": baseDir},
	}
	resolver := storage.NewConnectionResolver(storage.ResolverParams{
		Providers: []storage.StorageProvider{localStorage.NewProvider(store.Cfg)},
		Cfg:       store.Cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })

	records := usecase.NewDefaultRecordStore(store.Records, clock.NewManualClock(test.Epoch), metrics.NewNoOpMetricRecorder())
	exporter, err := export.NewExporter(records, resolver, export.Config{StorageRef: "landing", Prefix: "export/", Compression: compression})
	require.NoError(t, err)
	return &fixture{records: records, exporter: exporter, baseDir: baseDir}
}

func readRows[T any](t *testing.T, path string) []T {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]T, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestExportActive_Entities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "SNAPPY")

	require.NoError(t, f.records.WriteEntities(ctx, test.NewTestEntities("tenant-a", "B1", "customer", 3)))
	require.NoError(t, f.records.WriteEntities(ctx, test.NewTestEntities("tenant-b", "B9", "customer", 5)))

	result, err := f.exporter.ExportActive(ctx, "tenant-a", "customer", "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Rows)
	assert.Equal(t, "export/tenant-a/customer/B1.parquet", result.ObjectName)

	rows := readRows[export.EntityRow](t, filepath.Join(f.baseDir, filepath.FromSlash(result.ObjectName)))
	require.Len(t, rows, 3)
	assert.Equal(t, "key-1", rows[0].BusinessKey)
	assert.Equal(t, "tenant-a", rows[0].TenantID)
	assert.JSONEq(t, `{"value":1}`, rows[0].Attributes)
	assert.Equal(t, test.Epoch.UnixMicro(), rows[0].CreatedAt)
}

func TestExportActive_RawCells(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "GZIP")

	cells := test.NewTestRawCells("tenant-a", "B1", "Sheet1", []string{"id", "name"}, [][]string{{"1", "alpha"}, {"2", "beta"}})
	require.NoError(t, f.records.WriteRawBatch(ctx, cells))

	result, err := f.exporter.ExportActive(ctx, "tenant-a", model.RecordKindRaw, "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Rows)

	rows := readRows[export.RawCellRow](t, filepath.Join(f.baseDir, filepath.FromSlash(result.ObjectName)))
	require.Len(t, rows, 4)
	assert.Equal(t, int32(2), rows[0].RowNumber)
	assert.Equal(t, "id", rows[0].ColumnName)
	assert.Equal(t, "beta", rows[3].Value)
}

func TestExportActive_EmptyViewSkipsUpload(t *testing.T) {
	f := newFixture(t, "NONE")

	result, err := f.exporter.ExportActive(context.Background(), "tenant-a", "customer", "B1")
	require.NoError(t, err)
	assert.Equal(t, export.Result{}, result)
	assert.NoDirExists(t, filepath.Join(f.baseDir, "export"))
}

func TestNewExporter_Validation(t *testing.T) {
	_, err := export.NewExporter(nil, nil, export.Config{})
	assert.Error(t, err)

	_, err = export.NewExporter(nil, nil, export.Config{StorageRef: "landing", Compression: "LZMA"})
	assert.ErrorContains(t, err, "invalid export compression")
}
