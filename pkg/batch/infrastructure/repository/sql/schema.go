package sql

import (
	"time"

	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

// LeaseEntity is a live lease row. The primary key is the lock scope.
type LeaseEntity struct {
	TenantID  string `gorm:"primaryKey"`
	LockKind  string `gorm:"primaryKey"`
	BatchID   string
	Holder    string
	Status    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (LeaseEntity) TableName() string {
	return "sheet_lease"
}

// LeaseHistoryEntity records a lease removed by release or sweep.
type LeaseHistoryEntity struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	TenantID  string
	LockKind  string
	BatchID   string
	Holder    string
	Status    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RemovedAt time.Time
}

func (LeaseHistoryEntity) TableName() string {
	return "sheet_lease_history"
}

// BatchEntity is a schema model used for persistence.
type BatchEntity struct {
	ID              string `gorm:"primaryKey"`
	TenantID        string
	InputIdentifier string
	InputSize       int64
	RecordCount     int64
	Status          string
	StartedAt       time.Time
	CompletedAt     *time.Time
	LastError       string
	ExternalRunRef  string
	Metadata        model.Metadata
	UpdatedAt       time.Time
}

func (BatchEntity) TableName() string {
	return "sheet_batch"
}

// StepEntity is a schema model used for persistence.
type StepEntity struct {
	Seq              int64  `gorm:"primaryKey;autoIncrement"`
	ID               string `gorm:"column:id"`
	BatchID          string
	StepName         string
	Status           string
	StartedAt        time.Time
	CompletedAt      *time.Time
	RecordsProcessed int64
	ErrorMessage     string
	ExternalJobRef   string
}

func (StepEntity) TableName() string {
	return "sheet_processing_step"
}

// RawCellEntity is a schema model used for persistence.
type RawCellEntity struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
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

func (RawCellEntity) TableName() string {
	return "sheet_raw_cell"
}

// EntityRecordEntity is a schema model used for persistence.
type EntityRecordEntity struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	BatchID     string
	TenantID    string
	EntityType  string
	BusinessKey string
	Attributes  model.Attributes
	ParentType  string
	ParentKey   string
	Active      bool
	CreatedAt   time.Time
}

func (EntityRecordEntity) TableName() string {
	return "sheet_entity"
}
