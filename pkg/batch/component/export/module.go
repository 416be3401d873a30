package export

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

func newExporterFromConfig(records usecase.RecordStore, resolver storage.StorageConnectionResolver, cfg *config.Config) (*Exporter, error) {
	return NewExporter(records, resolver, Config{
		StorageRef:  cfg.Sheetflow.Infrastructure.StorageRef,
		Prefix:      cfg.Sheetflow.Pipeline.ExportPrefix,
		Compression: cfg.Sheetflow.Pipeline.ExportCompression,
	})
}

// Module provides the Exporter.
var Module = fx.Options(
	fx.Provide(newExporterFromConfig),
)
