package sql

import (
	"context"
	"fmt"

	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
)

// SQLLedgerRepository implements repository.LedgerRepository.
type SQLLedgerRepository struct {
	sqlStore
}

// NewSQLLedgerRepository creates a ledger repository on the named connection.
func NewSQLLedgerRepository(dbResolver coreAdapter.ResourceConnectionResolver, dbName string) *SQLLedgerRepository {
	return &SQLLedgerRepository{sqlStore{dbResolver: dbResolver, dbName: dbName, module: "SQLLedgerRepository"}}
}

// --- Batch implementation ---

func (r *SQLLedgerRepository) InsertBatch(ctx context.Context, batch *model.Batch) error {
	const op = "SQLLedgerRepository.InsertBatch"
	entity := fromDomainBatch(batch)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	if _, err = executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		if executor.IsDuplicateKeyError(err) {
			return exception.NewSheetError(op, fmt.Sprintf("batch (ID: %s) already exists", batch.ID), repository.ErrDuplicateBatch, false, false)
		}
		return storeError(op, fmt.Sprintf("failed to save batch (ID: %s)", batch.ID), executor, err)
	}
	return nil
}

func (r *SQLLedgerRepository) FindBatchByID(ctx context.Context, batchID string) (*model.Batch, error) {
	const op = "SQLLedgerRepository.FindBatchByID"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []BatchEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": batchID}, "", 1); err != nil {
		return nil, storeError(op, fmt.Sprintf("failed to find batch by ID: %s", batchID), executor, err)
	}
	if len(entities) == 0 {
		return nil, exception.NewSheetError(op, fmt.Sprintf("batch (ID: %s) not found", batchID), repository.ErrBatchNotFound, false, false)
	}
	return toDomainBatch(&entities[0]), nil
}

func (r *SQLLedgerRepository) FindBatchesByTenant(ctx context.Context, tenantID string, limit int) ([]*model.Batch, error) {
	const op = "SQLLedgerRepository.FindBatchesByTenant"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []BatchEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"tenant_id": tenantID}, "started_at desc, id desc", limit); err != nil {
		return nil, storeError(op, fmt.Sprintf("failed to find batches of tenant %s", tenantID), executor, err)
	}

	batches := make([]*model.Batch, 0, len(entities))
	for i := range entities {
		batches = append(batches, toDomainBatch(&entities[i]))
	}
	return batches, nil
}

func (r *SQLLedgerRepository) UpdateBatchIf(ctx context.Context, batch *model.Batch, from ...model.BatchStatus) (bool, error) {
	const op = "SQLLedgerRepository.UpdateBatchIf"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return false, err
	}

	fromStatuses := make([]string, 0, len(from))
	for _, s := range from {
		fromStatuses = append(fromStatuses, string(s))
	}

	values := map[string]interface{}{
		"status":       string(batch.Status),
		"completed_at": nullableTime(batch.CompletedAt),
		"last_error":   batch.LastError,
		"record_count": batch.RecordCount,
		"updated_at":   batch.UpdatedAt.UTC(),
	}
	rowsAffected, err := executor.ExecuteUpdateColumns(ctx, BatchEntity{}.TableName(),
		map[string]interface{}{"id": batch.ID, "status": fromStatuses}, values)
	if err != nil {
		return false, storeError(op, fmt.Sprintf("failed to update batch (ID: %s)", batch.ID), executor, err)
	}
	return rowsAffected > 0, nil
}

// --- ProcessingStep implementation ---

func (r *SQLLedgerRepository) InsertStep(ctx context.Context, step *model.ProcessingStep) error {
	const op = "SQLLedgerRepository.InsertStep"
	entity := fromDomainStep(step)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	if _, err = executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil); err != nil {
		return storeError(op, fmt.Sprintf("failed to save step (ID: %s)", step.ID), executor, err)
	}
	step.Seq = entity.Seq
	return nil
}

func (r *SQLLedgerRepository) FindStepByID(ctx context.Context, stepID string) (*model.ProcessingStep, error) {
	const op = "SQLLedgerRepository.FindStepByID"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []StepEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"id": stepID}, "", 1); err != nil {
		return nil, storeError(op, fmt.Sprintf("failed to find step by ID: %s", stepID), executor, err)
	}
	if len(entities) == 0 {
		return nil, exception.NewSheetError(op, fmt.Sprintf("step (ID: %s) not found", stepID), repository.ErrStepNotFound, false, false)
	}
	return toDomainStep(&entities[0]), nil
}

func (r *SQLLedgerRepository) FindStepsByBatchID(ctx context.Context, batchID string) ([]*model.ProcessingStep, error) {
	const op = "SQLLedgerRepository.FindStepsByBatchID"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []StepEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"batch_id": batchID}, "seq asc", 0); err != nil {
		return nil, storeError(op, fmt.Sprintf("failed to find steps of batch %s", batchID), executor, err)
	}

	steps := make([]*model.ProcessingStep, 0, len(entities))
	for i := range entities {
		steps = append(steps, toDomainStep(&entities[i]))
	}
	return steps, nil
}

func (r *SQLLedgerRepository) UpdateStepIf(ctx context.Context, step *model.ProcessingStep, from ...model.StepStatus) (bool, error) {
	const op = "SQLLedgerRepository.UpdateStepIf"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return false, err
	}

	fromStatuses := make([]string, 0, len(from))
	for _, s := range from {
		fromStatuses = append(fromStatuses, string(s))
	}

	values := map[string]interface{}{
		"status":            string(step.Status),
		"completed_at":      nullableTime(step.CompletedAt),
		"records_processed": step.RecordsProcessed,
		"error_message":     step.ErrorMessage,
		"external_job_ref":  step.ExternalJobRef,
	}
	rowsAffected, err := executor.ExecuteUpdateColumns(ctx, StepEntity{}.TableName(),
		map[string]interface{}{"id": step.ID, "status": fromStatuses}, values)
	if err != nil {
		return false, storeError(op, fmt.Sprintf("failed to update step (ID: %s)", step.ID), executor, err)
	}
	return rowsAffected > 0, nil
}

var _ repository.LedgerRepository = (*SQLLedgerRepository)(nil)
