package export

import (
	"encoding/json"

	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// EntityRow is the Parquet layout of an exported entity.
type EntityRow struct {
	TenantID    string `parquet:"name=tenant_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BatchID     string `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	EntityType  string `parquet:"name=entity_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BusinessKey string `parquet:"name=business_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	ParentType  string `parquet:"name=parent_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ParentKey   string `parquet:"name=parent_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes  string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"` // JSON object
	CreatedAt   int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MICROS"`
}

// RawCellRow is the Parquet layout of an exported raw cell.
type RawCellRow struct {
	TenantID   string `parquet:"name=tenant_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BatchID    string `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SheetName  string `parquet:"name=sheet_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RowNumber  int32  `parquet:"name=row_number, type=INT32"`
	ColumnName string `parquet:"name=column_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value      string `parquet:"name=value, type=BYTE_ARRAY, convertedtype=UTF8"`
	DataType   string `parquet:"name=data_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt  int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MICROS"`
}

func newEntityRow(e *model.Entity) (EntityRow, error) {
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return EntityRow{}, err
	}
	return EntityRow{
		TenantID:    e.TenantID,
		BatchID:     e.BatchID,
		EntityType:  e.EntityType,
		BusinessKey: e.BusinessKey,
		ParentType:  e.ParentType,
		ParentKey:   e.ParentKey,
		Attributes:  string(attrs),
		CreatedAt:   e.CreatedAt.UnixMicro(),
	}, nil
}

func newRawCellRow(c *model.RawCell) RawCellRow {
	return RawCellRow{
		TenantID:   c.TenantID,
		BatchID:    c.BatchID,
		SheetName:  c.SheetName,
		RowNumber:  int32(c.RowNumber),
		ColumnName: c.ColumnName,
		Value:      c.Value,
		DataType:   c.DataType,
		CreatedAt:  c.CreatedAt.UnixMicro(),
	}
}
