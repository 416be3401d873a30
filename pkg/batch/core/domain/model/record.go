package model

import "time"

// RecordKindRaw selects raw cells in record queries. Any other kind is an entity type.
const RecordKindRaw = "raw"

// RawCell is one ingested spreadsheet cell.
type RawCell struct {
	ID         int64
	BatchID    string
	TenantID   string
	SheetName  string
	RowNumber  int
	ColumnName string
	Value      string
	DataType   string
	Active     bool
	CreatedAt  time.Time
}

// Entity is one transformed business record.
// ParentType and ParentKey reference another entity by business key, never by id,
// so the reference survives a superseding batch.
type Entity struct {
	ID          int64
	BatchID     string
	TenantID    string
	EntityType  string
	BusinessKey string
	Attributes  Attributes
	ParentType  string
	ParentKey   string
	Active      bool
	CreatedAt   time.Time
}

// HasParent reports whether the entity references another entity.
func (e *Entity) HasParent() bool {
	return e.ParentType != "" && e.ParentKey != ""
}

// Record is either a raw cell or an entity.
type Record struct {
	Kind   string
	Raw    *RawCell
	Entity *Entity
}

// RawRecord wraps a raw cell.
func RawRecord(c *RawCell) Record {
	return Record{Kind: RecordKindRaw, Raw: c}
}

// EntityRecord wraps an entity.
func EntityRecord(e *Entity) Record {
	return Record{Kind: e.EntityType, Entity: e}
}

// BatchID returns the owning batch.
func (r Record) BatchID() string {
	if r.Raw != nil {
		return r.Raw.BatchID
	}
	if r.Entity != nil {
		return r.Entity.BatchID
	}
	return ""
}

// Active returns the record's active flag.
func (r Record) Active() bool {
	if r.Raw != nil {
		return r.Raw.Active
	}
	if r.Entity != nil {
		return r.Entity.Active
	}
	return false
}
