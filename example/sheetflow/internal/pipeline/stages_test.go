package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/pipeline"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

type fixture struct {
	records  *usecase.DefaultRecordStore
	resolver *storage.ConnectionResolver
	conn     storage.StorageConnection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := test.NewSQLiteStore(t)
	store.Cfg.Sheetflow.AdapterConfigs["storage"] = map[string]interface{}{
		"landing": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
	}
	resolver := storage.NewConnectionResolver(storage.ResolverParams{
		Providers: []storage.StorageProvider{local.NewProvider(store.Cfg)},
		Cfg:       store.Cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })
	conn, err := resolver.ResolveStorageConnection(context.Background(), "landing")
	require.NoError(t, err)

	return &fixture{
		records:  usecase.NewDefaultRecordStore(store.Records, clock.NewManualClock(test.Epoch), metrics.NewNoOpMetricRecorder()),
		resolver: resolver,
		conn:     conn,
	}
}

func (f *fixture) upload(t *testing.T, name, content string) pipeline.Input {
	t.Helper()
	require.NoError(t, f.conn.Upload(context.Background(), "", name, strings.NewReader(content), "text/csv"))
	return pipeline.Input{TenantID: "t1", BatchID: "B1", StorageRef: "landing", ObjectName: name}
}

func TestIngestThenTransform(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := f.upload(t, "incoming/t1/roster.csv", "id,name,age\nS1,Ana,12\nS2,Bo,\n,NoKey,9\nS1,Ana B,13\n")

	n, err := pipeline.NewIngestStage(f.resolver, f.records, "").Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	raw, err := f.records.QueryActive(ctx, "t1", model.RecordKindRaw, map[string]interface{}{"sheet_name": "roster"})
	require.NoError(t, err)
	assert.Len(t, raw, 12)

	n, err = pipeline.NewTransformStage(f.records, "id", "student").Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s1, err := f.records.ResolveEntity(ctx, "t1", "student", "S1")
	require.NoError(t, err)
	require.NotNil(t, s1)
	assert.Equal(t, "Ana B", s1.Attributes["name"])
	assert.EqualValues(t, 13, s1.Attributes["age"])

	s2, err := f.records.ResolveEntity(ctx, "t1", "student", "S2")
	require.NoError(t, err)
	require.NotNil(t, s2)
	assert.Nil(t, s2.Attributes["age"])
}

func TestTransform_NoKeyColumn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := f.upload(t, "incoming/t1/roster.csv", "name\nAna\n")

	_, err := pipeline.NewIngestStage(f.resolver, f.records, "Sheet1").Execute(ctx, in)
	require.NoError(t, err)

	_, err = pipeline.NewTransformStage(f.records, "id", "student").Execute(ctx, in)
	assert.ErrorContains(t, err, "has a 'id' value")
}

func TestIngest_MissingFile(t *testing.T) {
	f := newFixture(t)
	in := pipeline.Input{TenantID: "t1", BatchID: "B1", StorageRef: "landing", ObjectName: "incoming/t1/none.csv"}

	_, err := pipeline.NewIngestStage(f.resolver, f.records, "").Execute(context.Background(), in)
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := f.upload(t, "incoming/t1/roster.csv", "id\n1\n")

	stage := pipeline.NewArchiveStage(f.resolver, "incoming/", "archive/")
	n, err := stage.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.conn.Stat(ctx, "", "incoming/t1/roster.csv")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	info, err := f.conn.Stat(ctx, "", "archive/B1/t1/roster.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "archive/B1/t1/roster.csv", stage.ArchiveName(in.ObjectName, in.BatchID))
}
