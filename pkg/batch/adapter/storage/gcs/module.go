package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	coreConfig "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

// NewProvider returns a provider of GCS connections.
func NewProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(cfg, ProviderType, NewGCSAdapter)
}

// Module registers the GCS provider in the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewProvider, fx.ResultTags(`group:"`+storageAdapter.ProviderGroup+`"`))),
)
