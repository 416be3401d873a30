package usecase_test

import (
	"testing"

	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

type services struct {
	store  *test.Store
	clock  *clock.ManualClock
	locks  *usecase.DefaultLockManager
	ledger *usecase.DefaultBatchLedger
	record *usecase.DefaultRecordStore
	purge  *usecase.DefaultPurgeService
}

func newServices(t *testing.T) *services {
	t.Helper()
	store := test.NewSQLiteStore(t)
	clk := clock.NewManualClock(test.Epoch)
	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()

	lockCfg := store.Cfg.Sheetflow.Lock
	lockCfg.Holder = "test-host"

	return &services{
		store:  store,
		clock:  clk,
		locks:  usecase.NewDefaultLockManager(store.Leases, clk, lockCfg, recorder, tracer),
		ledger: usecase.NewDefaultBatchLedger(store.Ledger, store.Records, clk, recorder, tracer),
		record: usecase.NewDefaultRecordStore(store.Records, clk, recorder),
		purge:  usecase.NewDefaultPurgeService(store.Records, store.TxManager, recorder, tracer),
	}
}
