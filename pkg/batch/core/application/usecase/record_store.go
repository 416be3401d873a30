package usecase

import (
	"context"
	"fmt"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
)

// DefaultRecordStore implements RecordStore. Every write is an insert of an
// active row; nothing is ever updated in place except the active flag.
type DefaultRecordStore struct {
	recordRepo repository.RecordRepository
	clock      clock.Clock
	recorder   metrics.MetricRecorder
}

// NewDefaultRecordStore creates a DefaultRecordStore.
func NewDefaultRecordStore(recordRepo repository.RecordRepository, clk clock.Clock, recorder metrics.MetricRecorder) *DefaultRecordStore {
	return &DefaultRecordStore{recordRepo: recordRepo, clock: clk, recorder: recorder}
}

func (s *DefaultRecordStore) WriteRaw(ctx context.Context, cell *model.RawCell) error {
	return s.WriteRawBatch(ctx, []*model.RawCell{cell})
}

func (s *DefaultRecordStore) WriteRawBatch(ctx context.Context, cells []*model.RawCell) error {
	const op = "DefaultRecordStore.WriteRawBatch"
	if len(cells) == 0 {
		return nil
	}
	now := s.clock.Now()
	for i, c := range cells {
		if c == nil || c.BatchID == "" || c.TenantID == "" {
			return exception.NewSheetError(op, fmt.Sprintf("raw cell #%d has no batch or tenant", i), nil, false, false)
		}
		c.Active = true
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}
	if err := s.recordRepo.InsertRawCells(ctx, cells); err != nil {
		return err
	}
	s.recorder.RecordRecordsWritten(ctx, model.RecordKindRaw, len(cells))
	return nil
}

func (s *DefaultRecordStore) WriteEntity(ctx context.Context, entity *model.Entity) error {
	return s.WriteEntities(ctx, []*model.Entity{entity})
}

func (s *DefaultRecordStore) WriteEntities(ctx context.Context, entities []*model.Entity) error {
	const op = "DefaultRecordStore.WriteEntities"
	if len(entities) == 0 {
		return nil
	}
	now := s.clock.Now()
	for i, e := range entities {
		if e == nil || e.BatchID == "" || e.TenantID == "" {
			return exception.NewSheetError(op, fmt.Sprintf("entity #%d has no batch or tenant", i), nil, false, false)
		}
		if e.EntityType == "" || e.EntityType == model.RecordKindRaw {
			return exception.NewSheetError(op, fmt.Sprintf("entity #%d has invalid type %q", i, e.EntityType), nil, false, false)
		}
		if e.BusinessKey == "" {
			return exception.NewSheetError(op, fmt.Sprintf("entity #%d has no business key", i), nil, false, false)
		}
		if e.Attributes == nil {
			e.Attributes = model.Attributes{}
		}
		e.Active = true
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	if err := s.recordRepo.InsertEntities(ctx, entities); err != nil {
		return err
	}
	s.recorder.RecordRecordsWritten(ctx, entities[0].EntityType, len(entities))
	return nil
}

func (s *DefaultRecordStore) QueryActive(ctx context.Context, tenantID, kind string, filter map[string]interface{}) ([]model.Record, error) {
	const op = "DefaultRecordStore.QueryActive"
	if kind == "" {
		return nil, exception.NewSheetError(op, "record kind is required", repository.ErrInvalidFilter, false, false)
	}

	if kind == model.RecordKindRaw {
		cells, err := s.recordRepo.FindActiveRawCells(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(cells))
		for _, c := range cells {
			records = append(records, model.RawRecord(c))
		}
		return records, nil
	}

	entities, err := s.recordRepo.FindActiveEntities(ctx, tenantID, kind, filter)
	if err != nil {
		return nil, err
	}
	records := make([]model.Record, 0, len(entities))
	for _, e := range entities {
		records = append(records, model.EntityRecord(e))
	}
	return records, nil
}

func (s *DefaultRecordStore) QueryByBatch(ctx context.Context, batchID string) ([]model.Record, error) {
	cells, err := s.recordRepo.FindRawCellsByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	entities, err := s.recordRepo.FindEntitiesByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(cells)+len(entities))
	for _, c := range cells {
		records = append(records, model.RawRecord(c))
	}
	for _, e := range entities {
		records = append(records, model.EntityRecord(e))
	}
	return records, nil
}

func (s *DefaultRecordStore) ResolveEntity(ctx context.Context, tenantID, entityType, businessKey string) (*model.Entity, error) {
	entities, err := s.recordRepo.FindActiveEntities(ctx, tenantID, entityType, map[string]interface{}{"business_key": businessKey})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[len(entities)-1], nil
}

// ResolveParent returns the active entity e references, or nil when e has no
// parent or the parent is not active.
func (s *DefaultRecordStore) ResolveParent(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	if !e.HasParent() {
		return nil, nil
	}
	return s.ResolveEntity(ctx, e.TenantID, e.ParentType, e.ParentKey)
}

var _ RecordStore = (*DefaultRecordStore)(nil)
