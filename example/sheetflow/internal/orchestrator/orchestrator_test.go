package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/orchestrator"
	"github.com/tigerroll/sheetflow/example/sheetflow/internal/pipeline"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/sheetflow/pkg/batch/component/export"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	"github.com/tigerroll/sheetflow/pkg/batch/core/config"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

var testRetry = config.RetryConfig{MaxAttempts: 3, InitialIntervalMs: 1}

type env struct {
	locks    *usecase.DefaultLockManager
	ledger   *usecase.DefaultBatchLedger
	records  *usecase.DefaultRecordStore
	purge    *usecase.DefaultPurgeService
	resolver *storage.ConnectionResolver
	conn     storage.StorageConnection
	write    []pipeline.Stage
	publish  []pipeline.Stage
}

func newEnv(t *testing.T) *env {
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

	clk := clock.NewManualClock(test.Epoch)
	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()
	lockCfg := store.Cfg.Sheetflow.Lock
	lockCfg.Holder = "test-host"

	e := &env{
		locks:    usecase.NewDefaultLockManager(store.Leases, clk, lockCfg, recorder, tracer),
		ledger:   usecase.NewDefaultBatchLedger(store.Ledger, store.Records, clk, recorder, tracer),
		records:  usecase.NewDefaultRecordStore(store.Records, clk, recorder),
		purge:    usecase.NewDefaultPurgeService(store.Records, store.TxManager, recorder, tracer),
		resolver: resolver,
		conn:     conn,
	}
	exporter, err := export.NewExporter(e.records, resolver, export.Config{StorageRef: "landing", Prefix: "export/", Compression: "SNAPPY"})
	require.NoError(t, err)

	e.write = []pipeline.Stage{
		pipeline.NewIngestStage(resolver, e.records, ""),
		pipeline.NewTransformStage(e.records, "id", "student"),
	}
	e.publish = []pipeline.Stage{
		pipeline.NewExportStage(exporter, "student"),
		pipeline.NewArchiveStage(resolver, "incoming/", "archive/"),
	}
	return e
}

func (e *env) orchestrator(policy string) *orchestrator.Orchestrator {
	return orchestrator.New(e.locks, e.ledger, e.purge, e.write, e.publish, policy, testRetry)
}

func (e *env) upload(t *testing.T, name, content string) orchestrator.Trigger {
	t.Helper()
	require.NoError(t, e.conn.Upload(context.Background(), "", name, strings.NewReader(content), "text/csv"))
	tenant, _, _ := strings.Cut(strings.TrimPrefix(name, "incoming/"), "/")
	return orchestrator.Trigger{TenantID: tenant, StorageRef: "landing", ObjectName: name, Size: int64(len(content))}
}

func (e *env) activeStudents(t *testing.T, tenant string) int {
	t.Helper()
	recs, err := e.records.QueryActive(context.Background(), tenant, "student", nil)
	require.NoError(t, err)
	return len(recs)
}

func TestRun_CompletesBatchAndReleasesLock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	trig := e.upload(t, "incoming/t1/roster.csv", "id,name\nS1,Ana\nS2,Bo\n")
	trig.RunRef = "run-7"

	outcome, err := e.orchestrator(config.SupersedeNone).Run(ctx, trig)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, outcome.Status)
	require.NotNil(t, outcome.Summary)
	assert.Equal(t, 4, outcome.Summary.TotalSteps)
	assert.Equal(t, 4, outcome.Summary.CompletedSteps)

	batch, err := e.ledger.GetBatch(ctx, outcome.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), batch.RecordCount)
	assert.Equal(t, "run-7", batch.ExternalRunRef)
	assert.Equal(t, int64(len("id,name\nS1,Ana\nS2,Bo\n")), batch.InputSize)

	steps, err := e.ledger.ListSteps(ctx, outcome.BatchID)
	require.NoError(t, err)
	var names []string
	for _, s := range steps {
		names = append(names, s.StepName)
	}
	assert.Equal(t, []string{"ingest", "transform", "export", "archive"}, names)

	lease, err := e.locks.Inspect(ctx, "t1", "")
	require.NoError(t, err)
	assert.Nil(t, lease)

	_, err = e.conn.Stat(ctx, "", "export/t1/student/"+outcome.BatchID+".parquet")
	assert.NoError(t, err)
	_, err = e.conn.Stat(ctx, "", "incoming/t1/roster.csv")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestRun_TenantBusy(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	trig := e.upload(t, "incoming/t1/roster.csv", "id\nS1\n")

	ok, err := e.locks.Acquire(ctx, "t1", "other-batch", "", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	outcome, err := e.orchestrator(config.SupersedeNone).Run(ctx, trig)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, orchestrator.ErrTenantBusy)

	batches, err := e.ledger.ListBatches(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Empty(t, batches)

	lease, err := e.locks.Inspect(ctx, "t1", "")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "other-batch", lease.BatchID)
}

func TestRun_FailedStageRollsBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	trig := e.upload(t, "incoming/t1/roster.csv", "name\nAna\n")

	outcome, err := e.orchestrator(config.SupersedeNone).Run(ctx, trig)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, model.BatchStatusFailed, outcome.Status)
	assert.Equal(t, 1, outcome.Summary.FailedSteps)

	batch, err := e.ledger.GetBatch(ctx, outcome.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, batch.Status)
	assert.Contains(t, batch.LastError, "transform")

	raw, err := e.records.QueryActive(ctx, "t1", model.RecordKindRaw, nil)
	require.NoError(t, err)
	assert.Empty(t, raw)

	history, err := e.records.QueryByBatch(ctx, outcome.BatchID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	lease, err := e.locks.Inspect(ctx, "t1", "")
	require.NoError(t, err)
	assert.Nil(t, lease)

	_, err = e.conn.Stat(ctx, "", "incoming/t1/roster.csv")
	assert.NoError(t, err, "a failed input stays in place for the next scan")
}

func TestRun_SupersedePolicies(t *testing.T) {
	for _, policy := range []string{config.SupersedeBeforeWrite, config.SupersedeAfterCommit} {
		t.Run(policy, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t)
			o := e.orchestrator(policy)

			first, err := o.Run(ctx, e.upload(t, "incoming/t1/a.csv", "id\nS1\nS2\nS3\n"))
			require.NoError(t, err)
			assert.Equal(t, 3, e.activeStudents(t, "t1"))

			second, err := o.Run(ctx, e.upload(t, "incoming/t1/b.csv", "id\nS1\nS4\n"))
			require.NoError(t, err)
			assert.Equal(t, 2, e.activeStudents(t, "t1"))

			s1, err := e.records.ResolveEntity(ctx, "t1", "student", "S1")
			require.NoError(t, err)
			assert.Equal(t, second.BatchID, s1.BatchID)

			old, err := e.records.QueryByBatch(ctx, first.BatchID)
			require.NoError(t, err)
			for _, r := range old {
				assert.False(t, r.Active())
			}

			steps, err := e.ledger.ListSteps(ctx, second.BatchID)
			require.NoError(t, err)
			var supersede []string
			for _, s := range steps {
				if s.StepName == orchestrator.StepSupersede {
					supersede = append(supersede, s.StepName)
				}
			}
			assert.Len(t, supersede, 1)
		})
	}
}

func TestRun_NoSupersedeKeepsBothGenerations(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := e.orchestrator(config.SupersedeNone)

	_, err := o.Run(ctx, e.upload(t, "incoming/t1/a.csv", "id\nS1\nS2\n"))
	require.NoError(t, err)
	_, err = o.Run(ctx, e.upload(t, "incoming/t1/b.csv", "id\nS1\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, e.activeStudents(t, "t1"))
}

type flakyStage struct {
	failures int
	calls    int
}

func (s *flakyStage) Name() string { return "flaky" }

func (s *flakyStage) Execute(ctx context.Context, in pipeline.Input) (int64, error) {
	s.calls++
	if s.calls <= s.failures {
		return 0, exception.NewSheetError("test", "store unavailable", errors.New("connection refused"), false, true)
	}
	return 1, nil
}

func TestRun_StageErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	stage := &flakyStage{failures: 1}
	o := orchestrator.New(e.locks, e.ledger, e.purge, []pipeline.Stage{stage}, nil, config.SupersedeNone, testRetry)

	outcome, err := o.Run(ctx, orchestrator.Trigger{TenantID: "t1", StorageRef: "landing", ObjectName: "x.csv"})
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
	assert.Equal(t, 1, stage.calls)
	assert.Equal(t, model.BatchStatusFailed, outcome.Status)
}

type failingStage struct{ name string }

func (s failingStage) Name() string { return s.name }

func (s failingStage) Execute(ctx context.Context, in pipeline.Input) (int64, error) {
	return 0, errors.New("bucket unavailable")
}

func TestRun_PublishFailureAfterSupersedeKeepsNewGeneration(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	first, err := e.orchestrator(config.SupersedeAfterCommit).Run(ctx, e.upload(t, "incoming/t1/a.csv", "id\nS1\nS2\n"))
	require.NoError(t, err)
	require.Equal(t, 2, e.activeStudents(t, "t1"))

	o := orchestrator.New(e.locks, e.ledger, e.purge, e.write, []pipeline.Stage{failingStage{name: pipeline.StepExport}}, config.SupersedeAfterCommit, testRetry)
	outcome, err := o.Run(ctx, e.upload(t, "incoming/t1/b.csv", "id\nS1\nS3\nS4\n"))
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, outcome.Status)

	assert.Equal(t, 3, e.activeStudents(t, "t1"))
	s1, err := e.records.ResolveEntity(ctx, "t1", "student", "S1")
	require.NoError(t, err)
	assert.Equal(t, outcome.BatchID, s1.BatchID)

	old, err := e.records.QueryByBatch(ctx, first.BatchID)
	require.NoError(t, err)
	for _, r := range old {
		assert.False(t, r.Active())
	}

	batch, err := e.ledger.GetBatch(ctx, outcome.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, batch.Status)
	assert.Contains(t, batch.LastError, "bucket unavailable")
}

func TestRun_WriteFailureBeforeSupersedeKeepsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := e.orchestrator(config.SupersedeAfterCommit)

	first, err := o.Run(ctx, e.upload(t, "incoming/t1/a.csv", "id\nS1\nS2\n"))
	require.NoError(t, err)

	_, err = o.Run(ctx, e.upload(t, "incoming/t1/b.csv", "name\nAna\n"))
	require.Error(t, err)

	assert.Equal(t, 2, e.activeStudents(t, "t1"))
	s1, err := e.records.ResolveEntity(ctx, "t1", "student", "S1")
	require.NoError(t, err)
	assert.Equal(t, first.BatchID, s1.BatchID)
}

var errLostAck = exception.NewSheetError("test", "connection reset after commit", errors.New("connection reset"), false, true)

// lostAckLocks commits the first Acquire but reports a temporary error for it.
type lostAckLocks struct {
	usecase.LockManager
	calls int
}

func (l *lostAckLocks) Acquire(ctx context.Context, tenantID, batchID, lockKind string, ttl time.Duration) (bool, error) {
	l.calls++
	ok, err := l.LockManager.Acquire(ctx, tenantID, batchID, lockKind, ttl)
	if l.calls == 1 && err == nil {
		return false, errLostAck
	}
	return ok, err
}

// lostAckLedger does the same for the first CreateBatch.
type lostAckLedger struct {
	usecase.BatchLedger
	calls int
}

func (l *lostAckLedger) CreateBatch(ctx context.Context, batchID, tenantID string, input model.InputRef, metadata model.Metadata) (*model.Batch, error) {
	l.calls++
	batch, err := l.BatchLedger.CreateBatch(ctx, batchID, tenantID, input, metadata)
	if l.calls == 1 && err == nil {
		return nil, errLostAck
	}
	return batch, err
}

func TestRun_RetriesAfterCommittedWritesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	locks := &lostAckLocks{LockManager: e.locks}
	ledger := &lostAckLedger{BatchLedger: e.ledger}
	o := orchestrator.New(locks, ledger, e.purge, e.write, e.publish, config.SupersedeNone, testRetry)

	outcome, err := o.Run(ctx, e.upload(t, "incoming/t1/roster.csv", "id\nS1\n"))
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, outcome.Status)
	assert.Equal(t, 2, locks.calls)
	assert.Equal(t, 2, ledger.calls)

	batches, err := e.ledger.ListBatches(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, outcome.BatchID, batches[0].ID)

	lease, err := e.locks.Inspect(ctx, "t1", "")
	require.NoError(t, err)
	assert.Nil(t, lease)
}
