package pipeline

import (
	"context"
	"fmt"

	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// TransformStage turns each ingested row of the batch into one entity keyed
// by the key column. Rows without a key are skipped; when a key repeats the
// last row wins.
type TransformStage struct {
	records    usecase.RecordStore
	keyColumn  string
	entityType string
}

// NewTransformStage creates the transform stage.
func NewTransformStage(records usecase.RecordStore, keyColumn, entityType string) *TransformStage {
	return &TransformStage{records: records, keyColumn: keyColumn, entityType: entityType}
}

func (s *TransformStage) Name() string { return StepTransform }

func (s *TransformStage) Execute(ctx context.Context, in Input) (int64, error) {
	const op = "TransformStage.Execute"

	records, err := s.records.QueryByBatch(ctx, in.BatchID)
	if err != nil {
		return 0, err
	}

	rows := make(map[int]model.Attributes)
	var order []int
	for _, r := range records {
		if r.Raw == nil || !r.Raw.Active {
			continue
		}
		attrs, ok := rows[r.Raw.RowNumber]
		if !ok {
			attrs = model.Attributes{}
			rows[r.Raw.RowNumber] = attrs
			order = append(order, r.Raw.RowNumber)
		}
		attrs[r.Raw.ColumnName] = TypedValue(r.Raw.Value, r.Raw.DataType)
	}

	index := make(map[string]int)
	var entities []*model.Entity
	for _, rowNumber := range order {
		attrs := rows[rowNumber]
		key := attrs[s.keyColumn]
		if key == nil || fmt.Sprint(key) == "" {
			logger.Warnf("%s: row %d of batch %s has no '%s', skipped.", op, rowNumber, in.BatchID, s.keyColumn)
			continue
		}
		businessKey := fmt.Sprint(key)
		entity := &model.Entity{
			TenantID:    in.TenantID,
			BatchID:     in.BatchID,
			EntityType:  s.entityType,
			BusinessKey: businessKey,
			Attributes:  attrs,
		}
		if i, dup := index[businessKey]; dup {
			logger.Warnf("%s: key '%s' repeats at row %d of batch %s; the later row wins.", op, businessKey, rowNumber, in.BatchID)
			entities[i] = entity
			continue
		}
		index[businessKey] = len(entities)
		entities = append(entities, entity)
	}

	if len(records) > 0 && len(entities) == 0 {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: no row of batch %s has a '%s' value", op, in.BatchID, s.keyColumn), nil, false, false)
	}
	if err := s.records.WriteEntities(ctx, entities); err != nil {
		return 0, err
	}
	logger.Infof("%s: wrote %d '%s' entities (batch %s).", op, len(entities), s.entityType, in.BatchID)
	return int64(len(entities)), nil
}

var _ Stage = (*TransformStage)(nil)
