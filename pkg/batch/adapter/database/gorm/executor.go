package gorm

import (
	"context"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableNamer is implemented by persistence entities that name their table.
type TableNamer interface {
	TableName() string
}

// applyTableName points db at the table of model, which may be a struct,
// a pointer or a slice of either.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	val := reflect.ValueOf(model)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
			return db.Table(namer.TableName())
		}
	}

	return db.Model(model)
}

// DefaultCreateBatchSize is the number of rows per INSERT of a bulk create.
// At ten bound columns a row it stays under the parameter limits of sqlite
// (32766), postgres and mysql (65535).
const DefaultCreateBatchSize = 500

// executor implements tx.TxExecutor over a *gorm.DB that is either a pool
// handle or an open transaction.
type executor struct {
	db *gorm.DB
	// autoCommit disables gorm's implicit per-statement transaction.
	autoCommit bool
	// batchSize caps the rows of one INSERT statement.
	batchSize int
}

func (e *executor) session(ctx context.Context) *gorm.DB {
	db := e.db.WithContext(ctx)
	if e.autoCommit {
		db = db.Session(&gorm.Session{SkipDefaultTransaction: true})
	}
	return db
}

// ExecuteUpdate performs "CREATE", "UPDATE" or "DELETE" on model.
func (e *executor) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	if operation == "CREATE" {
		return e.create(e.session(ctx), tableName, model)
	}

	db := e.session(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case "UPDATE":
		result = db.Model(model).Where(query).Updates(model)
	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// create inserts model. Slices longer than the batch size are split into
// several statements that commit together: inside the caller's transaction
// when there is one, otherwise inside a transaction of their own.
func (e *executor) create(db *gorm.DB, tableName string, model interface{}) (int64, error) {
	table := func(db *gorm.DB) *gorm.DB {
		if tableName != "" {
			return db.Table(tableName)
		}
		return db
	}
	size := e.batchSize
	if size <= 0 {
		size = DefaultCreateBatchSize
	}
	n, isSlice := sliceLen(model)
	if !isSlice {
		result := table(db).Create(model)
		return result.RowsAffected, result.Error
	}

	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})
	if !e.autoCommit || n <= size {
		result := table(db).CreateInBatches(model, size)
		return result.RowsAffected, result.Error
	}

	var rows int64
	err := db.Transaction(func(tx *gorm.DB) error {
		result := table(tx).CreateInBatches(model, size)
		rows = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func sliceLen(model interface{}) (int, bool) {
	val := reflect.Indirect(reflect.ValueOf(model))
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return 0, false
	}
	return val.Len(), true
}

// ExecuteUpsert inserts model with an ON CONFLICT clause.
func (e *executor) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	db := e.session(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpdateColumns sets values on every row matching query.
func (e *executor) ExecuteUpdateColumns(ctx context.Context, tableName string, query map[string]interface{}, values map[string]interface{}) (int64, error) {
	if len(query) == 0 {
		return 0, fmt.Errorf("refusing to update table %s without conditions", tableName)
	}
	result := e.session(ctx).Table(tableName).Where(query).Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteDeleteWhere deletes rows matching a raw where clause.
func (e *executor) ExecuteDeleteWhere(ctx context.Context, model interface{}, tableName string, where string, args ...interface{}) (int64, error) {
	if where == "" {
		return 0, fmt.Errorf("refusing to delete from table %s without conditions", tableName)
	}
	db := e.session(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}
	result := db.Where(where, args...).Delete(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteQuery loads rows matching query into target.
func (e *executor) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return applyTableName(e.db.WithContext(ctx), target).Where(query).Find(target).Error
}

// ExecuteQueryAdvanced loads rows with optional ordering and limit.
func (e *executor) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := applyTableName(e.db.WithContext(ctx), target)
	if query != nil {
		db = db.Where(query)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db.Find(target).Error
}

// ExecuteQueryWhere loads rows matching a raw where clause.
func (e *executor) ExecuteQueryWhere(ctx context.Context, target interface{}, where string, args []interface{}, orderBy string) error {
	db := applyTableName(e.db.WithContext(ctx), target)
	if where != "" {
		db = db.Where(where, args...)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	return db.Find(target).Error
}

// Count counts rows of model's table matching query.
func (e *executor) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := applyTableName(e.db.WithContext(ctx), model)
	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IsDuplicateKeyError implements tx.TxExecutor.
func (e *executor) IsDuplicateKeyError(err error) bool {
	return IsDuplicateKeyError(err)
}

// IsTableNotExistError implements tx.TxExecutor.
func (e *executor) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}
