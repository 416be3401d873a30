package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

func TestBatchLedger_CreateBatch(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	batch, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "incoming/T1/students.csv", Size: 2048},
		model.Metadata{model.MetadataExternalRunRef: "run-42", "source": "upload"})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarted, batch.Status)

	stored, err := s.ledger.GetBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "T1", stored.TenantID)
	assert.Equal(t, "incoming/T1/students.csv", stored.InputIdentifier)
	assert.Equal(t, int64(2048), stored.InputSize)
	assert.Equal(t, "run-42", stored.ExternalRunRef)
	assert.Equal(t, "upload", stored.Metadata["source"])
	assert.True(t, stored.StartedAt.Equal(test.Epoch))
	assert.Nil(t, stored.CompletedAt)
}

func TestBatchLedger_DuplicateBatch(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)

	// Batch ids are global: another tenant cannot reuse one either.
	_, err = s.ledger.CreateBatch(ctx, "B1", "T2", model.InputRef{Name: "b.csv"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrDuplicateBatch))
}

func TestBatchLedger_GeneratesBatchID(t *testing.T) {
	s := newServices(t)
	batch, err := s.ledger.CreateBatch(context.Background(), "", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
}

func TestBatchLedger_RecordStep(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.RecordStep(ctx, "missing", "ingest")
	assert.True(t, errors.Is(err, repository.ErrBatchNotFound))

	_, err = s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)

	step, err := s.ledger.RecordStep(ctx, "B1", "ingest", usecase.WithExternalJobRef("job-7"))
	require.NoError(t, err)
	assert.Equal(t, model.StepStatusRunning, step.Status)

	batch, err := s.ledger.GetBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusInProgress, batch.Status)

	// Step names may repeat, e.g. a retried stage.
	_, err = s.ledger.RecordStep(ctx, "B1", "ingest", usecase.WithPendingStatus())
	require.NoError(t, err)

	steps, err := s.ledger.ListSteps(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, step.ID, steps[0].ID)
	assert.Equal(t, "job-7", steps[0].ExternalJobRef)
	assert.Equal(t, model.StepStatusPending, steps[1].Status)
}

func TestBatchLedger_CompleteStepIsIdempotent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	step, err := s.ledger.RecordStep(ctx, "B1", "transform")
	require.NoError(t, err)

	s.clock.Advance(time.Minute)
	require.NoError(t, s.ledger.CompleteStep(ctx, step.ID, 10, nil))

	first, err := s.store.Ledger.FindStepByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StepStatusCompleted, first.Status)
	assert.Equal(t, int64(10), first.RecordsProcessed)
	require.NotNil(t, first.CompletedAt)

	// A redelivered completion, even with different content, changes nothing.
	s.clock.Advance(time.Minute)
	require.NoError(t, s.ledger.CompleteStep(ctx, step.ID, 99, errors.New("late failure")))

	second, err := s.store.Ledger.FindStepByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBatchLedger_CompleteStepFailed(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	step, err := s.ledger.RecordStep(ctx, "B1", "export")
	require.NoError(t, err)

	require.NoError(t, s.ledger.CompleteStep(ctx, step.ID, 3, errors.New("bucket unreachable")))

	stored, err := s.store.Ledger.FindStepByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StepStatusFailed, stored.Status)
	assert.Equal(t, "bucket unreachable", stored.ErrorMessage)

	err = s.ledger.CompleteStep(ctx, "missing", 0, nil)
	assert.True(t, errors.Is(err, repository.ErrStepNotFound))
}

func TestBatchLedger_CompleteBatch(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T1", "B1", "Sheet1",
		[]string{"id", "name"}, [][]string{{"1", "Ada"}, {"2", "Grace"}})))

	s.clock.Advance(5 * time.Minute)
	require.NoError(t, s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusCompleted, nil))

	batch, err := s.ledger.GetBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, batch.Status)
	assert.Equal(t, int64(4), batch.RecordCount)
	require.NotNil(t, batch.CompletedAt)
	assert.True(t, batch.CompletedAt.Equal(test.Epoch.Add(5*time.Minute)))

	// Same status again is a no-op.
	require.NoError(t, s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusCompleted, nil))

	// A terminal batch cannot be re-opened or flipped.
	err = s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusFailed, errors.New("boom"))
	assert.True(t, errors.Is(err, repository.ErrInvalidTransition))
	assert.True(t, usecase.IsInvalidTransition(err))

	err = s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusInProgress, nil)
	assert.True(t, errors.Is(err, repository.ErrInvalidTransition))

	err = s.ledger.CompleteBatch(ctx, "missing", model.BatchStatusCompleted, nil)
	assert.True(t, errors.Is(err, repository.ErrBatchNotFound))
}

func TestBatchLedger_CompleteBatchFailedKeepsError(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusFailed, errors.New("header row missing")))

	batch, err := s.ledger.GetBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, batch.Status)
	assert.Equal(t, "header row missing", batch.LastError)
}

func TestBatchLedger_Summarize(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)

	for i, name := range []string{"ingest", "transform", "export"} {
		step, err := s.ledger.RecordStep(ctx, "B1", name)
		require.NoError(t, err)
		var stepErr error
		if name == "export" {
			stepErr = errors.New("export failed")
		}
		require.NoError(t, s.ledger.CompleteStep(ctx, step.ID, int64(10*(i+1)), stepErr))
	}
	_, err = s.ledger.RecordStep(ctx, "B1", "archive")
	require.NoError(t, err)

	summary, err := s.ledger.Summarize(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, &model.BatchSummary{
		BatchID:        "B1",
		Status:         model.BatchStatusInProgress,
		TotalSteps:     4,
		CompletedSteps: 2,
		FailedSteps:    1,
		TotalRecords:   60,
	}, summary)

	_, err = s.ledger.Summarize(ctx, "missing")
	assert.True(t, errors.Is(err, repository.ErrBatchNotFound))
}

func TestBatchLedger_ListBatches(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	for _, id := range []string{"B1", "B2", "B3"} {
		_, err := s.ledger.CreateBatch(ctx, id, "T1", model.InputRef{Name: id + ".csv"}, nil)
		require.NoError(t, err)
		s.clock.Advance(time.Minute)
	}
	_, err := s.ledger.CreateBatch(ctx, "X1", "T2", model.InputRef{Name: "x.csv"}, nil)
	require.NoError(t, err)

	batches, err := s.ledger.ListBatches(ctx, "T1", 0)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, "B3", batches[0].ID)
	assert.Equal(t, "B1", batches[2].ID)

	batches, err = s.ledger.ListBatches(ctx, "T1", 2)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestBatchLedger_RecordStepOnTerminalBatchIsKept(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.ledger.CreateBatch(ctx, "B1", "T1", model.InputRef{Name: "a.csv"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.ledger.CompleteBatch(ctx, "B1", model.BatchStatusFailed, errors.New("boom")))

	step, err := s.ledger.RecordStep(ctx, "B1", "cleanup")
	require.NoError(t, err)
	require.NoError(t, s.ledger.CompleteStep(ctx, step.ID, 0, nil))

	steps, err := s.ledger.ListSteps(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, model.StepStatusCompleted, steps[0].Status)

	batch, err := s.ledger.GetBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, batch.Status, "a late step does not reopen the batch")
}
