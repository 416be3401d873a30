package test

import (
	"fmt"
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// Epoch is a fixed start instant for ManualClock-driven tests.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// NewTestRawCells returns one cell per column of each row, numbered from row 2
// as they would be below a header row.
func NewTestRawCells(tenantID, batchID, sheet string, columns []string, rows [][]string) []*model.RawCell {
	var cells []*model.RawCell
	for i, row := range rows {
		for j, value := range row {
			cells = append(cells, &model.RawCell{
				TenantID:   tenantID,
				BatchID:    batchID,
				SheetName:  sheet,
				RowNumber:  i + 2,
				ColumnName: columns[j],
				Value:      value,
				DataType:   "string",
			})
		}
	}
	return cells
}

// NewTestEntity returns an entity with a single "value" attribute.
func NewTestEntity(tenantID, batchID, entityType, businessKey string, value interface{}) *model.Entity {
	return &model.Entity{
		TenantID:    tenantID,
		BatchID:     batchID,
		EntityType:  entityType,
		BusinessKey: businessKey,
		Attributes:  model.Attributes{"value": value},
	}
}

// NewTestEntities returns n entities keyed key-1..key-n.
func NewTestEntities(tenantID, batchID, entityType string, n int) []*model.Entity {
	entities := make([]*model.Entity, 0, n)
	for i := 1; i <= n; i++ {
		entities = append(entities, NewTestEntity(tenantID, batchID, entityType, fmt.Sprintf("key-%d", i), i))
	}
	return entities
}
