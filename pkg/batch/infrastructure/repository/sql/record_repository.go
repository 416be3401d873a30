package sql

import (
	"context"
	"fmt"

	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
)

// Columns a caller may filter on. Anything else is rejected rather than
// passed to the store as a column name.
var (
	rawCellFilterColumns = map[string]struct{}{
		"sheet_name": {}, "row_number": {}, "column_name": {}, "data_type": {}, "batch_id": {}, "value": {},
	}
	entityFilterColumns = map[string]struct{}{
		"business_key": {}, "batch_id": {}, "parent_type": {}, "parent_key": {},
	}
	scopeColumns = map[string]struct{}{
		"tenant_id": {}, "batch_id": {},
	}
)

// SQLRecordRepository implements repository.RecordRepository.
type SQLRecordRepository struct {
	sqlStore
}

// NewSQLRecordRepository creates a record repository on the named connection.
func NewSQLRecordRepository(dbResolver coreAdapter.ResourceConnectionResolver, dbName string) *SQLRecordRepository {
	return &SQLRecordRepository{sqlStore{dbResolver: dbResolver, dbName: dbName, module: "SQLRecordRepository"}}
}

func buildQuery(op string, base map[string]interface{}, filter map[string]interface{}, allowed map[string]struct{}) (map[string]interface{}, error) {
	query := make(map[string]interface{}, len(base)+len(filter))
	for k, v := range filter {
		if _, ok := allowed[k]; !ok {
			return nil, exception.NewSheetError(op, fmt.Sprintf("unknown filter column '%s'", k), repository.ErrInvalidFilter, false, false)
		}
		query[k] = v
	}
	for k, v := range base {
		query[k] = v
	}
	return query, nil
}

func (r *SQLRecordRepository) InsertRawCells(ctx context.Context, cells []*model.RawCell) error {
	const op = "SQLRecordRepository.InsertRawCells"
	if len(cells) == 0 {
		return nil
	}

	entities := make([]*RawCellEntity, 0, len(cells))
	for _, c := range cells {
		entities = append(entities, fromDomainRawCell(c))
	}

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entities, "CREATE", RawCellEntity{}.TableName(), nil); err != nil {
		return storeError(op, fmt.Sprintf("failed to insert %d raw cells (batch: %s)", len(cells), cells[0].BatchID), executor, err)
	}
	for i, e := range entities {
		cells[i].ID = e.ID
	}
	return nil
}

func (r *SQLRecordRepository) InsertEntities(ctx context.Context, records []*model.Entity) error {
	const op = "SQLRecordRepository.InsertEntities"
	if len(records) == 0 {
		return nil
	}

	entities := make([]*EntityRecordEntity, 0, len(records))
	for _, e := range records {
		entities = append(entities, fromDomainEntity(e))
	}

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entities, "CREATE", EntityRecordEntity{}.TableName(), nil); err != nil {
		return storeError(op, fmt.Sprintf("failed to insert %d entities (batch: %s)", len(records), records[0].BatchID), executor, err)
	}
	for i, e := range entities {
		records[i].ID = e.ID
	}
	return nil
}

func (r *SQLRecordRepository) FindActiveRawCells(ctx context.Context, tenantID string, filter map[string]interface{}) ([]*model.RawCell, error) {
	const op = "SQLRecordRepository.FindActiveRawCells"

	query, err := buildQuery(op, map[string]interface{}{"tenant_id": tenantID, "active": true}, filter, rawCellFilterColumns)
	if err != nil {
		return nil, err
	}
	return r.findRawCells(ctx, op, query)
}

func (r *SQLRecordRepository) FindRawCellsByBatch(ctx context.Context, batchID string) ([]*model.RawCell, error) {
	const op = "SQLRecordRepository.FindRawCellsByBatch"
	return r.findRawCells(ctx, op, map[string]interface{}{"batch_id": batchID})
}

func (r *SQLRecordRepository) findRawCells(ctx context.Context, op string, query map[string]interface{}) ([]*model.RawCell, error) {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []RawCellEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, query, "id asc", 0); err != nil {
		return nil, storeError(op, "failed to query raw cells", executor, err)
	}

	cells := make([]*model.RawCell, 0, len(entities))
	for i := range entities {
		cells = append(cells, toDomainRawCell(&entities[i]))
	}
	return cells, nil
}

func (r *SQLRecordRepository) FindActiveEntities(ctx context.Context, tenantID, entityType string, filter map[string]interface{}) ([]*model.Entity, error) {
	const op = "SQLRecordRepository.FindActiveEntities"

	base := map[string]interface{}{"tenant_id": tenantID, "entity_type": entityType, "active": true}
	query, err := buildQuery(op, base, filter, entityFilterColumns)
	if err != nil {
		return nil, err
	}
	return r.findEntities(ctx, op, query)
}

func (r *SQLRecordRepository) FindEntitiesByBatch(ctx context.Context, batchID string) ([]*model.Entity, error) {
	const op = "SQLRecordRepository.FindEntitiesByBatch"
	return r.findEntities(ctx, op, map[string]interface{}{"batch_id": batchID})
}

func (r *SQLRecordRepository) findEntities(ctx context.Context, op string, query map[string]interface{}) ([]*model.Entity, error) {
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []EntityRecordEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, query, "id asc", 0); err != nil {
		return nil, storeError(op, "failed to query entities", executor, err)
	}

	records := make([]*model.Entity, 0, len(entities))
	for i := range entities {
		records = append(records, toDomainEntity(&entities[i]))
	}
	return records, nil
}

func (r *SQLRecordRepository) CountRawCellsByBatch(ctx context.Context, batchID string) (int64, error) {
	const op = "SQLRecordRepository.CountRawCellsByBatch"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	count, err := executor.Count(ctx, &RawCellEntity{}, map[string]interface{}{"batch_id": batchID})
	if err != nil {
		return 0, storeError(op, fmt.Sprintf("failed to count raw cells of batch %s", batchID), executor, err)
	}
	return count, nil
}

func (r *SQLRecordRepository) DeactivateRawCells(ctx context.Context, scope map[string]interface{}) (int64, error) {
	const op = "SQLRecordRepository.DeactivateRawCells"
	return r.deactivate(ctx, op, RawCellEntity{}.TableName(), scope)
}

func (r *SQLRecordRepository) DeactivateEntities(ctx context.Context, scope map[string]interface{}) (int64, error) {
	const op = "SQLRecordRepository.DeactivateEntities"
	return r.deactivate(ctx, op, EntityRecordEntity{}.TableName(), scope)
}

// deactivate only touches rows that are still active, so repeating it changes nothing.
func (r *SQLRecordRepository) deactivate(ctx context.Context, op, tableName string, scope map[string]interface{}) (int64, error) {
	if len(scope) == 0 {
		return 0, exception.NewSheetError(op, "deactivation scope is empty", repository.ErrInvalidFilter, false, false)
	}
	query, err := buildQuery(op, map[string]interface{}{"active": true}, scope, scopeColumns)
	if err != nil {
		return 0, err
	}

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	rowsAffected, err := executor.ExecuteUpdateColumns(ctx, tableName, query, map[string]interface{}{"active": false})
	if err != nil {
		return 0, storeError(op, fmt.Sprintf("failed to deactivate rows of %s (scope: %v)", tableName, scope), executor, err)
	}
	return rowsAffected, nil
}

var _ repository.RecordRepository = (*SQLRecordRepository)(nil)
