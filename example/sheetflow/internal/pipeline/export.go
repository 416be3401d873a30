package pipeline

import (
	"context"

	"github.com/tigerroll/sheetflow/pkg/batch/component/export"
)

// ExportStage publishes the tenant's active entities as Parquet.
type ExportStage struct {
	exporter   *export.Exporter
	entityType string
}

// NewExportStage creates the export stage.
func NewExportStage(exporter *export.Exporter, entityType string) *ExportStage {
	return &ExportStage{exporter: exporter, entityType: entityType}
}

func (s *ExportStage) Name() string { return StepExport }

func (s *ExportStage) Execute(ctx context.Context, in Input) (int64, error) {
	result, err := s.exporter.ExportActive(ctx, in.TenantID, s.entityType, in.BatchID)
	if err != nil {
		return 0, err
	}
	return result.Rows, nil
}

var _ Stage = (*ExportStage)(nil)
