package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// IngestStage parses the input CSV into raw cells.
type IngestStage struct {
	resolver  storage.StorageConnectionResolver
	records   usecase.RecordStore
	sheetName string
}

// NewIngestStage creates the ingest stage. An empty sheetName means the
// input's base name.
func NewIngestStage(resolver storage.StorageConnectionResolver, records usecase.RecordStore, sheetName string) *IngestStage {
	return &IngestStage{resolver: resolver, records: records, sheetName: sheetName}
}

func (s *IngestStage) Name() string { return StepIngest }

func (s *IngestStage) Execute(ctx context.Context, in Input) (int64, error) {
	const op = "IngestStage.Execute"

	conn, err := s.resolver.ResolveStorageConnection(ctx, in.StorageRef)
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to resolve storage '%s'", op, in.StorageRef), err, false, true)
	}
	rc, err := conn.Download(ctx, "", in.ObjectName)
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to download '%s'", op, in.ObjectName), err, false, false)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to read '%s'", op, in.ObjectName), err, false, true)
	}

	sheet, err := ParseCSV(data)
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: '%s' is not a readable sheet", op, in.ObjectName), err, false, false)
	}
	for _, w := range sheet.Warnings {
		logger.Warnf("%s: %s: %s", op, in.ObjectName, w)
	}

	sheetName := s.sheetName
	if sheetName == "" {
		sheetName = SheetNameFor(in.ObjectName)
	}
	cells := sheet.RawCells(in.TenantID, in.BatchID, sheetName)
	if err := s.records.WriteRawBatch(ctx, cells); err != nil {
		return 0, err
	}
	logger.Infof("%s: ingested %d cells from %d rows of '%s' (batch %s).", op, len(cells), len(sheet.Rows), in.ObjectName, in.BatchID)
	return int64(len(cells)), nil
}

var _ Stage = (*IngestStage)(nil)
