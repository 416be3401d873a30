// Package config holds the settings of one storage connection.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	coreConfig "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

// StorageConfig holds storage connection settings, decoded from adapter.storage.<name>.
type StorageConfig struct {
	Type            string `yaml:"type" mapstructure:"type"`                         // "local" or "gcs"
	BucketName      string `yaml:"bucket_name" mapstructure:"bucket_name"`           // default bucket
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"` // GCS service account key
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`                 // GCS emulator or private endpoint
	BaseDir         string `yaml:"base_dir" mapstructure:"base_dir"`                 // root directory for "local"
}

// Lookup decodes adapter.storage.<name> from cfg.
func Lookup(cfg *coreConfig.Config, name string) (StorageConfig, error) {
	var storageCfg StorageConfig
	section, ok := cfg.Sheetflow.AdapterConfigs["storage"].(map[string]interface{})
	if !ok {
		return storageCfg, fmt.Errorf("no 'adapter.storage' configuration found for connection '%s'", name)
	}
	raw, ok := section[name]
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration '%s' not found under 'adapter.storage'", name)
	}
	if err := mapstructure.WeakDecode(raw, &storageCfg); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}
