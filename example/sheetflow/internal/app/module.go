package app

import (
	"go.uber.org/fx"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/orchestrator"
	"github.com/tigerroll/sheetflow/example/sheetflow/internal/pipeline"
	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/component/export"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

// PipelineParams are the inputs of the pipeline stages.
type PipelineParams struct {
	fx.In
	Cfg      *config.Config
	Storage  storage.StorageConnectionResolver
	Records  usecase.RecordStore
	Exporter *export.Exporter
}

// NewOrchestrator wires the reference stages into an orchestrator.
func NewOrchestrator(p PipelineParams, locks usecase.LockManager, ledger usecase.BatchLedger, purge usecase.PurgeService) *orchestrator.Orchestrator {
	pc := p.Cfg.Sheetflow.Pipeline
	write := []pipeline.Stage{
		pipeline.NewIngestStage(p.Storage, p.Records, pc.SheetName),
		pipeline.NewTransformStage(p.Records, pc.KeyColumn, pc.EntityType),
	}
	publish := []pipeline.Stage{
		pipeline.NewExportStage(p.Exporter, pc.EntityType),
		pipeline.NewArchiveStage(p.Storage, pc.IncomingPrefix, pc.ArchivePrefix),
	}
	return orchestrator.New(locks, ledger, purge, write, publish, p.Cfg.Sheetflow.Purge.SupersedePolicy, pc.Retry)
}

// NewScanner creates the scanner over the orchestrator.
func NewScanner(resolver storage.StorageConnectionResolver, o *orchestrator.Orchestrator) *orchestrator.Scanner {
	return orchestrator.NewScanner(resolver, o)
}

// Module provides the orchestrator and scanner.
var Module = fx.Options(
	fx.Provide(NewOrchestrator),
	fx.Provide(NewScanner),
)
