package usecase

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/core/tx"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

const (
	purgeScopeTenant = "tenant"
	purgeScopeBatch  = "batch"
)

// DefaultPurgeService implements PurgeService.
// With a TransactionManager both tables flip in one transaction. Without one
// each table is deactivated on its own and failures are collected.
type DefaultPurgeService struct {
	recordRepo repository.RecordRepository
	txManager  tx.TransactionManager
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewDefaultPurgeService creates a DefaultPurgeService. txManager may be nil.
func NewDefaultPurgeService(recordRepo repository.RecordRepository, txManager tx.TransactionManager, recorder metrics.MetricRecorder, tracer metrics.Tracer) *DefaultPurgeService {
	return &DefaultPurgeService{
		recordRepo: recordRepo,
		txManager:  txManager,
		recorder:   recorder,
		tracer:     tracer,
	}
}

func (p *DefaultPurgeService) PurgeTenant(ctx context.Context, tenantID string) (int64, error) {
	const op = "DefaultPurgeService.PurgeTenant"
	if tenantID == "" {
		return 0, exception.NewSheetError(op, "tenant id is required", repository.ErrInvalidFilter, false, false)
	}
	return p.purge(ctx, op, purgeScopeTenant, map[string]interface{}{"tenant_id": tenantID})
}

func (p *DefaultPurgeService) PurgeBatch(ctx context.Context, batchID string) (int64, error) {
	const op = "DefaultPurgeService.PurgeBatch"
	if batchID == "" {
		return 0, exception.NewSheetError(op, "batch id is required", repository.ErrInvalidFilter, false, false)
	}
	return p.purge(ctx, op, purgeScopeBatch, map[string]interface{}{"batch_id": batchID})
}

func (p *DefaultPurgeService) purge(ctx context.Context, op, scopeName string, scope map[string]interface{}) (int64, error) {
	ctx, end := p.tracer.StartSpan(ctx, op, scope)
	defer end()

	var (
		raw, entities int64
		err           error
	)
	if p.txManager != nil {
		raw, entities, err = p.purgeInTx(ctx, scope)
	} else {
		raw, entities, err = p.purgeEach(ctx, scope)
	}
	if err != nil {
		p.tracer.RecordError(ctx, op, err)
		return raw, err
	}

	p.recorder.RecordRecordsDeactivated(ctx, scopeName, raw, entities)
	logger.Infof("Purged %s %v: %d raw cell(s), %d entit(ies) deactivated", scopeName, scope, raw, entities)
	return raw, nil
}

func (p *DefaultPurgeService) purgeInTx(ctx context.Context, scope map[string]interface{}) (raw, entities int64, err error) {
	t, err := p.txManager.Begin(ctx)
	if err != nil {
		return 0, 0, exception.NewSheetError("DefaultPurgeService", "failed to begin purge transaction", err, false, true)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = p.txManager.Rollback(t)
			panic(r)
		}
	}()

	txCtx := tx.WithTx(ctx, t)
	if raw, err = p.recordRepo.DeactivateRawCells(txCtx, scope); err != nil {
		p.rollback(t)
		return 0, 0, err
	}
	if entities, err = p.recordRepo.DeactivateEntities(txCtx, scope); err != nil {
		p.rollback(t)
		return 0, 0, err
	}
	if err = p.txManager.Commit(t); err != nil {
		return 0, 0, exception.NewSheetError("DefaultPurgeService", "failed to commit purge transaction", err, false, true)
	}
	return raw, entities, nil
}

func (p *DefaultPurgeService) purgeEach(ctx context.Context, scope map[string]interface{}) (raw, entities int64, err error) {
	var result *multierror.Error
	raw, rawErr := p.recordRepo.DeactivateRawCells(ctx, scope)
	if rawErr != nil {
		result = multierror.Append(result, fmt.Errorf("raw cells: %w", rawErr))
	}
	entities, entityErr := p.recordRepo.DeactivateEntities(ctx, scope)
	if entityErr != nil {
		result = multierror.Append(result, fmt.Errorf("entities: %w", entityErr))
	}
	return raw, entities, result.ErrorOrNil()
}

func (p *DefaultPurgeService) rollback(t tx.Tx) {
	if err := p.txManager.Rollback(t); err != nil {
		logger.Errorf("DefaultPurgeService: rollback failed: %v", err)
	}
}

var _ PurgeService = (*DefaultPurgeService)(nil)
