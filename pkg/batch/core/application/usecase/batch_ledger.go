package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// StepOption customizes a step recorded by RecordStep.
type StepOption func(*model.ProcessingStep)

// WithExternalJobRef links the step to a job in an external orchestrator.
func WithExternalJobRef(ref string) StepOption {
	return func(s *model.ProcessingStep) {
		s.ExternalJobRef = ref
	}
}

// WithPendingStatus records the step as PENDING instead of RUNNING.
func WithPendingStatus() StepOption {
	return func(s *model.ProcessingStep) {
		s.Status = model.StepStatusPending
	}
}

// DefaultBatchLedger implements BatchLedger.
// Status changes are conditional updates, so a concurrent writer can never move
// a batch or step backward.
type DefaultBatchLedger struct {
	ledgerRepo repository.LedgerRepository
	recordRepo repository.RecordRepository
	clock      clock.Clock
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewDefaultBatchLedger creates a DefaultBatchLedger.
func NewDefaultBatchLedger(
	ledgerRepo repository.LedgerRepository,
	recordRepo repository.RecordRepository,
	clk clock.Clock,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *DefaultBatchLedger {
	return &DefaultBatchLedger{
		ledgerRepo: ledgerRepo,
		recordRepo: recordRepo,
		clock:      clk,
		recorder:   recorder,
		tracer:     tracer,
	}
}

func (l *DefaultBatchLedger) CreateBatch(ctx context.Context, batchID, tenantID string, input model.InputRef, metadata model.Metadata) (*model.Batch, error) {
	const op = "DefaultBatchLedger.CreateBatch"
	if tenantID == "" {
		return nil, exception.NewSheetError(op, "tenant id is required", nil, false, false)
	}
	if batchID == "" {
		batchID = model.NewID()
	}

	ctx, end := l.tracer.StartSpan(ctx, op, map[string]interface{}{"tenant_id": tenantID, "batch_id": batchID})
	defer end()

	batch := model.NewBatch(batchID, tenantID, input, metadata, l.clock.Now())
	if err := l.ledgerRepo.InsertBatch(ctx, batch); err != nil {
		l.tracer.RecordError(ctx, op, err)
		return nil, err
	}
	l.recorder.RecordBatchStart(ctx, batch)
	logger.Infof("Batch '%s' started for tenant '%s' (input: %s, %d bytes)", batch.ID, tenantID, input.Name, input.Size)
	return batch, nil
}

func (l *DefaultBatchLedger) RecordStep(ctx context.Context, batchID, stepName string, opts ...StepOption) (*model.ProcessingStep, error) {
	const op = "DefaultBatchLedger.RecordStep"
	if stepName == "" {
		return nil, exception.NewSheetError(op, "step name is required", nil, false, false)
	}

	batch, err := l.ledgerRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status.IsTerminal() {
		logger.Warnf("%s: recording step '%s' on batch '%s' which is already %s", op, stepName, batchID, batch.Status)
	}

	now := l.clock.Now()
	step := model.NewProcessingStep(batchID, stepName, now)
	for _, opt := range opts {
		opt(step)
	}
	if err := l.ledgerRepo.InsertStep(ctx, step); err != nil {
		return nil, err
	}

	if batch.Status == model.BatchStatusStarted {
		batch.Status = model.BatchStatusInProgress
		batch.UpdatedAt = now
		// Losing this race to another step or a completion is fine.
		if _, err := l.ledgerRepo.UpdateBatchIf(ctx, batch, model.BatchStatusStarted); err != nil {
			return nil, err
		}
	}

	logger.Debugf("Step '%s' (%s) recorded for batch '%s'", stepName, step.ID, batchID)
	return step, nil
}

func (l *DefaultBatchLedger) CompleteStep(ctx context.Context, stepID string, recordsProcessed int64, stepErr error) error {
	const op = "DefaultBatchLedger.CompleteStep"
	step, err := l.ledgerRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}
	if step.Status.IsTerminal() {
		logger.Debugf("%s: step '%s' is already %s, ignoring", op, stepID, step.Status)
		return nil
	}

	now := l.clock.Now()
	step.CompletedAt = &now
	step.RecordsProcessed = recordsProcessed
	if stepErr != nil {
		step.Status = model.StepStatusFailed
		step.ErrorMessage = stepErr.Error()
	} else {
		step.Status = model.StepStatusCompleted
	}

	changed, err := l.ledgerRepo.UpdateStepIf(ctx, step, model.StepStatusPending, model.StepStatusRunning)
	if err != nil {
		return err
	}
	if !changed {
		logger.Debugf("%s: step '%s' was completed concurrently", op, stepID)
		return nil
	}
	l.recorder.RecordStepEnd(ctx, step)
	logger.Infof("Step '%s' (%s) of batch '%s' finished: %s, %d record(s)", step.StepName, step.ID, step.BatchID, step.Status, recordsProcessed)
	return nil
}

func (l *DefaultBatchLedger) CompleteBatch(ctx context.Context, batchID string, status model.BatchStatus, batchErr error) error {
	const op = "DefaultBatchLedger.CompleteBatch"
	if !status.IsTerminal() {
		return exception.NewSheetError(op, fmt.Sprintf("status %s is not terminal", status), repository.ErrInvalidTransition, false, false)
	}

	ctx, end := l.tracer.StartSpan(ctx, op, map[string]interface{}{"batch_id": batchID, "status": string(status)})
	defer end()

	batch, err := l.ledgerRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status.IsTerminal() {
		return l.checkIdempotent(op, batch, status)
	}

	recordCount, err := l.recordRepo.CountRawCellsByBatch(ctx, batchID)
	if err != nil {
		return err
	}

	previous := batch.Status
	if err := batch.TransitionTo(status); err != nil {
		return exception.NewSheetError(op, err.Error(), repository.ErrInvalidTransition, false, false)
	}
	now := l.clock.Now()
	batch.CompletedAt = &now
	batch.UpdatedAt = now
	batch.RecordCount = recordCount
	if batchErr != nil {
		batch.LastError = batchErr.Error()
	}

	changed, err := l.ledgerRepo.UpdateBatchIf(ctx, batch, model.BatchStatusStarted, model.BatchStatusInProgress)
	if err != nil {
		l.tracer.RecordError(ctx, op, err)
		return err
	}
	if !changed {
		current, err := l.ledgerRepo.FindBatchByID(ctx, batchID)
		if err != nil {
			return err
		}
		return l.checkIdempotent(op, current, status)
	}

	l.recorder.RecordBatchEnd(ctx, batch)
	logger.Infof("Batch '%s' %s -> %s (%d raw cell(s), took %s)", batchID, previous, status, recordCount, now.Sub(batch.StartedAt).Round(time.Millisecond))
	return nil
}

// checkIdempotent accepts a repeated completion with the same status and
// rejects any attempt to change a terminal status.
func (l *DefaultBatchLedger) checkIdempotent(op string, batch *model.Batch, status model.BatchStatus) error {
	if batch.Status == status {
		logger.Debugf("%s: batch '%s' is already %s", op, batch.ID, status)
		return nil
	}
	return exception.NewSheetError(op,
		fmt.Sprintf("batch '%s' is %s, cannot move to %s", batch.ID, batch.Status, status),
		repository.ErrInvalidTransition, false, false)
}

func (l *DefaultBatchLedger) Summarize(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	batch, err := l.ledgerRepo.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	steps, err := l.ledgerRepo.FindStepsByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	summary := &model.BatchSummary{
		BatchID:    batch.ID,
		Status:     batch.Status,
		TotalSteps: len(steps),
	}
	for _, s := range steps {
		switch s.Status {
		case model.StepStatusCompleted:
			summary.CompletedSteps++
		case model.StepStatusFailed:
			summary.FailedSteps++
		}
		summary.TotalRecords += s.RecordsProcessed
	}
	return summary, nil
}

func (l *DefaultBatchLedger) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	return l.ledgerRepo.FindBatchByID(ctx, batchID)
}

func (l *DefaultBatchLedger) ListSteps(ctx context.Context, batchID string) ([]*model.ProcessingStep, error) {
	if _, err := l.ledgerRepo.FindBatchByID(ctx, batchID); err != nil {
		return nil, err
	}
	return l.ledgerRepo.FindStepsByBatchID(ctx, batchID)
}

func (l *DefaultBatchLedger) ListBatches(ctx context.Context, tenantID string, limit int) ([]*model.Batch, error) {
	return l.ledgerRepo.FindBatchesByTenant(ctx, tenantID, limit)
}

// IsInvalidTransition reports whether err came from a rejected status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, repository.ErrInvalidTransition)
}

var _ BatchLedger = (*DefaultBatchLedger)(nil)
