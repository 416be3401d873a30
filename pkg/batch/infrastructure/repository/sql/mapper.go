package sql

import (
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// --- Mapper functions ---

func fromDomainLease(l *model.Lease) *LeaseEntity {
	if l == nil {
		return nil
	}
	return &LeaseEntity{
		TenantID:  l.TenantID,
		LockKind:  l.LockKind,
		BatchID:   l.BatchID,
		Holder:    l.Holder,
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt,
		ExpiresAt: l.ExpiresAt,
	}
}

func toDomainLease(entity *LeaseEntity) *model.Lease {
	if entity == nil {
		return nil
	}
	return &model.Lease{
		TenantID:  entity.TenantID,
		LockKind:  entity.LockKind,
		BatchID:   entity.BatchID,
		Holder:    entity.Holder,
		Status:    model.LeaseStatus(entity.Status),
		CreatedAt: entity.CreatedAt.UTC(),
		ExpiresAt: entity.ExpiresAt.UTC(),
	}
}

func toLeaseHistory(entity *LeaseEntity, status model.LeaseStatus, removedAt time.Time) *LeaseHistoryEntity {
	return &LeaseHistoryEntity{
		TenantID:  entity.TenantID,
		LockKind:  entity.LockKind,
		BatchID:   entity.BatchID,
		Holder:    entity.Holder,
		Status:    string(status),
		CreatedAt: entity.CreatedAt,
		ExpiresAt: entity.ExpiresAt,
		RemovedAt: removedAt.UTC(),
	}
}

func fromDomainBatch(b *model.Batch) *BatchEntity {
	if b == nil {
		return nil
	}
	return &BatchEntity{
		ID:              b.ID,
		TenantID:        b.TenantID,
		InputIdentifier: b.InputIdentifier,
		InputSize:       b.InputSize,
		RecordCount:     b.RecordCount,
		Status:          string(b.Status),
		StartedAt:       b.StartedAt,
		CompletedAt:     b.CompletedAt,
		LastError:       b.LastError,
		ExternalRunRef:  b.ExternalRunRef,
		Metadata:        b.Metadata,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toDomainBatch(entity *BatchEntity) *model.Batch {
	if entity == nil {
		return nil
	}
	b := &model.Batch{
		ID:              entity.ID,
		TenantID:        entity.TenantID,
		InputIdentifier: entity.InputIdentifier,
		InputSize:       entity.InputSize,
		RecordCount:     entity.RecordCount,
		Status:          model.BatchStatus(entity.Status),
		StartedAt:       entity.StartedAt.UTC(),
		LastError:       entity.LastError,
		ExternalRunRef:  entity.ExternalRunRef,
		Metadata:        entity.Metadata,
		UpdatedAt:       entity.UpdatedAt.UTC(),
	}
	if entity.CompletedAt != nil {
		completed := entity.CompletedAt.UTC()
		b.CompletedAt = &completed
	}
	if b.Metadata == nil {
		b.Metadata = model.Metadata{}
	}
	return b
}

func fromDomainStep(s *model.ProcessingStep) *StepEntity {
	if s == nil {
		return nil
	}
	return &StepEntity{
		Seq:              s.Seq,
		ID:               s.ID,
		BatchID:          s.BatchID,
		StepName:         s.StepName,
		Status:           string(s.Status),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		RecordsProcessed: s.RecordsProcessed,
		ErrorMessage:     s.ErrorMessage,
		ExternalJobRef:   s.ExternalJobRef,
	}
}

func toDomainStep(entity *StepEntity) *model.ProcessingStep {
	if entity == nil {
		return nil
	}
	s := &model.ProcessingStep{
		Seq:              entity.Seq,
		ID:               entity.ID,
		BatchID:          entity.BatchID,
		StepName:         entity.StepName,
		Status:           model.StepStatus(entity.Status),
		StartedAt:        entity.StartedAt.UTC(),
		RecordsProcessed: entity.RecordsProcessed,
		ErrorMessage:     entity.ErrorMessage,
		ExternalJobRef:   entity.ExternalJobRef,
	}
	if entity.CompletedAt != nil {
		completed := entity.CompletedAt.UTC()
		s.CompletedAt = &completed
	}
	return s
}

func fromDomainRawCell(c *model.RawCell) *RawCellEntity {
	return &RawCellEntity{
		ID:         c.ID,
		BatchID:    c.BatchID,
		TenantID:   c.TenantID,
		SheetName:  c.SheetName,
		RowNumber:  c.RowNumber,
		ColumnName: c.ColumnName,
		Value:      c.Value,
		DataType:   c.DataType,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt,
	}
}

func toDomainRawCell(entity *RawCellEntity) *model.RawCell {
	return &model.RawCell{
		ID:         entity.ID,
		BatchID:    entity.BatchID,
		TenantID:   entity.TenantID,
		SheetName:  entity.SheetName,
		RowNumber:  entity.RowNumber,
		ColumnName: entity.ColumnName,
		Value:      entity.Value,
		DataType:   entity.DataType,
		Active:     entity.Active,
		CreatedAt:  entity.CreatedAt.UTC(),
	}
}

func fromDomainEntity(e *model.Entity) *EntityRecordEntity {
	return &EntityRecordEntity{
		ID:          e.ID,
		BatchID:     e.BatchID,
		TenantID:    e.TenantID,
		EntityType:  e.EntityType,
		BusinessKey: e.BusinessKey,
		Attributes:  e.Attributes,
		ParentType:  e.ParentType,
		ParentKey:   e.ParentKey,
		Active:      e.Active,
		CreatedAt:   e.CreatedAt,
	}
}

func toDomainEntity(entity *EntityRecordEntity) *model.Entity {
	e := &model.Entity{
		ID:          entity.ID,
		BatchID:     entity.BatchID,
		TenantID:    entity.TenantID,
		EntityType:  entity.EntityType,
		BusinessKey: entity.BusinessKey,
		Attributes:  entity.Attributes,
		ParentType:  entity.ParentType,
		ParentKey:   entity.ParentKey,
		Active:      entity.Active,
		CreatedAt:   entity.CreatedAt.UTC(),
	}
	if e.Attributes == nil {
		e.Attributes = model.Attributes{}
	}
	return e
}
