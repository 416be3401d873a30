// Package pipeline holds the reference stages a batch runs through: ingest,
// transform, export and archive.
package pipeline

import (
	"context"
	"path"
	"strings"
)

// Step names recorded in the ledger.
const (
	StepIngest    = "ingest"
	StepTransform = "transform"
	StepExport    = "export"
	StepArchive   = "archive"
)

// Input identifies the file a batch processes.
type Input struct {
	TenantID   string
	BatchID    string
	StorageRef string
	ObjectName string
}

// Stage is one step of a batch. Execute returns the number of records it processed.
type Stage interface {
	Name() string
	Execute(ctx context.Context, in Input) (int64, error)
}

// SheetNameFor derives a sheet name from the object's base name.
func SheetNameFor(objectName string) string {
	base := path.Base(objectName)
	return strings.TrimSuffix(base, path.Ext(base))
}
