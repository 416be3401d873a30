package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/test"
)

func TestPurgeService_PurgeTenant(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T1", "B1", "Sheet1",
		[]string{"id", "name", "grade"}, [][]string{{"1", "Ada", "5"}, {"2", "Grace", "6"}})))
	require.NoError(t, s.record.WriteEntities(ctx, test.NewTestEntities("T1", "B1", "row", 2)))
	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T2", "B2", "Sheet1",
		[]string{"id"}, [][]string{{"9"}})))

	n, err := s.purge.PurgeTenant(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = s.purge.PurgeTenant(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "second purge is a no-op")

	entities, err := s.record.QueryActive(ctx, "T1", "row", nil)
	require.NoError(t, err)
	assert.Empty(t, entities)

	other, err := s.record.QueryActive(ctx, "T2", model.RecordKindRaw, nil)
	require.NoError(t, err)
	assert.Len(t, other, 1, "other tenants are untouched")

	n, err = s.purge.PurgeTenant(ctx, "T-unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPurgeService_PurgeBatchLeavesOtherGenerations(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T1", "B1", "Sheet1", []string{"id"}, [][]string{{"1"}, {"2"}})))
	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T1", "B2", "Sheet1", []string{"id"}, [][]string{{"3"}})))

	n, err := s.purge.PurgeBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := s.record.QueryActive(ctx, "T1", model.RecordKindRaw, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "B2", active[0].BatchID())
}

func TestPurgeService_RequiresScope(t *testing.T) {
	s := newServices(t)
	_, err := s.purge.PurgeTenant(context.Background(), "")
	assert.Error(t, err)
	_, err = s.purge.PurgeBatch(context.Background(), "")
	assert.Error(t, err)
}

func TestPurgeService_WithoutTransactionManager(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	purge := usecase.NewDefaultPurgeService(s.store.Records, nil, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())

	require.NoError(t, s.record.WriteRawBatch(ctx, test.NewTestRawCells("T1", "B1", "Sheet1", []string{"id"}, [][]string{{"1"}})))
	require.NoError(t, s.record.WriteEntity(ctx, test.NewTestEntity("T1", "B1", "row", "1", 1)))

	n, err := purge.PurgeTenant(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := s.record.QueryByBatch(ctx, "B1")
	require.NoError(t, err)
	for _, r := range records {
		assert.False(t, r.Active())
	}
}

func TestPurgeService_BeginFailureIsReturned(t *testing.T) {
	s := newServices(t)
	txManager := new(test.MockTxManager)
	txManager.On("Begin", mock.Anything).Return(nil, errors.New("connection refused"))

	purge := usecase.NewDefaultPurgeService(s.store.Records, txManager, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
	_, err := purge.PurgeTenant(context.Background(), "T1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	txManager.AssertExpectations(t)
}

func TestPurgeService_RollsBackOnFailure(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	mockTx := new(test.MockTx)
	mockTx.On("ExecuteUpdateColumns", mock.Anything, "sheet_raw_cell", mock.Anything, mock.Anything).Return(int64(3), nil)
	mockTx.On("ExecuteUpdateColumns", mock.Anything, "sheet_entity", mock.Anything, mock.Anything).Return(int64(0), errors.New("deadlock detected"))
	mockTx.On("IsTableNotExistError", mock.Anything).Return(false)

	txManager := new(test.MockTxManager)
	txManager.On("Begin", mock.Anything).Return(mockTx, nil)
	txManager.On("Rollback", mockTx).Return(nil)

	purge := usecase.NewDefaultPurgeService(s.store.Records, txManager, metrics.NewNoOpMetricRecorder(), metrics.NewNoOpTracer())
	_, err := purge.PurgeTenant(ctx, "T1")
	require.Error(t, err)

	txManager.AssertNotCalled(t, "Commit", mock.Anything)
	txManager.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}
