package usecase

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/core/tx"
)

// ServiceParams are the fx inputs shared by the service constructors.
type ServiceParams struct {
	fx.In
	LeaseRepo  repository.LeaseRepository
	LedgerRepo repository.LedgerRepository
	RecordRepo repository.RecordRepository
	TxManager  tx.TransactionManager `optional:"true"`
	Clock      clock.Clock
	Cfg        *config.Config
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
}

func newLockManager(p ServiceParams) *DefaultLockManager {
	return NewDefaultLockManager(p.LeaseRepo, p.Clock, p.Cfg.Sheetflow.Lock, p.Recorder, p.Tracer)
}

func newBatchLedger(p ServiceParams) *DefaultBatchLedger {
	return NewDefaultBatchLedger(p.LedgerRepo, p.RecordRepo, p.Clock, p.Recorder, p.Tracer)
}

func newRecordStore(p ServiceParams) *DefaultRecordStore {
	return NewDefaultRecordStore(p.RecordRepo, p.Clock, p.Recorder)
}

func newPurgeService(p ServiceParams) *DefaultPurgeService {
	return NewDefaultPurgeService(p.RecordRepo, p.TxManager, p.Recorder, p.Tracer)
}

// Module provides the lock manager, batch ledger, record store and purge service.
var Module = fx.Options(
	fx.Provide(clock.NewSystemClock),
	fx.Provide(fx.Annotate(newLockManager, fx.As(new(LockManager)))),
	fx.Provide(fx.Annotate(newBatchLedger, fx.As(new(BatchLedger)))),
	fx.Provide(fx.Annotate(newRecordStore, fx.As(new(RecordStore)))),
	fx.Provide(fx.Annotate(newPurgeService, fx.As(new(PurgeService)))),
)
