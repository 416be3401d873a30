package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

func TestBatchTransitions(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	b := model.NewBatch("B1", "S1", model.InputRef{Name: "roster.csv", Size: 42}, model.Metadata{model.MetadataExternalRunRef: "run-7"}, now)

	assert.Equal(t, model.BatchStatusStarted, b.Status)
	assert.Equal(t, "run-7", b.ExternalRunRef)
	assert.Equal(t, int64(42), b.InputSize)

	require.NoError(t, b.TransitionTo(model.BatchStatusInProgress))
	assert.Error(t, b.TransitionTo(model.BatchStatusStarted), "never backward")
	require.NoError(t, b.TransitionTo(model.BatchStatusCompleted))

	err := b.TransitionTo(model.BatchStatusFailed)
	assert.EqualError(t, err, "Batch (ID: B1): Invalid state transition: COMPLETED -> FAILED")
	assert.Equal(t, model.BatchStatusCompleted, b.Status)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to model.BatchStatus
		ok       bool
	}{
		{model.BatchStatusStarted, model.BatchStatusInProgress, true},
		{model.BatchStatusStarted, model.BatchStatusFailed, true},
		{model.BatchStatusInProgress, model.BatchStatusCompleted, true},
		{model.BatchStatusInProgress, model.BatchStatusStarted, false},
		{model.BatchStatusFailed, model.BatchStatusCompleted, false},
		{model.BatchStatusCompleted, model.BatchStatusCompleted, false},
	}
	for _, c := range cases {
		b := &model.Batch{ID: "B1", Status: c.from}
		err := b.TransitionTo(c.to)
		assert.Equal(t, c.ok, err == nil, "%s -> %s", c.from, c.to)
	}
}

func TestParseBatchStatus(t *testing.T) {
	s, err := model.ParseBatchStatus("FAILED")
	require.NoError(t, err)
	assert.True(t, s.IsTerminal())

	_, err = model.ParseBatchStatus("DONE")
	assert.Error(t, err)
}

func TestLeaseExpiry(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	l := model.NewLease("S2", "B3", "processing", "cli", now, time.Hour)

	assert.Equal(t, model.LeaseStatusActive, l.Status)
	assert.False(t, l.IsExpiredAt(now.Add(59*time.Minute)))
	assert.True(t, l.IsExpiredAt(now.Add(time.Hour)))
}

func TestJSONColumns(t *testing.T) {
	attrs := model.Attributes{"name": "Alice", "grade": float64(3)}
	v, err := attrs.Value()
	require.NoError(t, err)

	var back model.Attributes
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, attrs, back)
	name, ok := back.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	var empty model.Metadata
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Error(t, empty.Scan(12))
}

func TestRecordAccessors(t *testing.T) {
	raw := model.RawRecord(&model.RawCell{BatchID: "B1", Active: true})
	assert.Equal(t, model.RecordKindRaw, raw.Kind)
	assert.Equal(t, "B1", raw.BatchID())
	assert.True(t, raw.Active())

	ent := model.EntityRecord(&model.Entity{BatchID: "B2", EntityType: "student", ParentType: "class", ParentKey: "1A"})
	assert.Equal(t, "student", ent.Kind)
	assert.Equal(t, "B2", ent.BatchID())
	assert.False(t, ent.Active())
	assert.True(t, ent.Entity.HasParent())
}
