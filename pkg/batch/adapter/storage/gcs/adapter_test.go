package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	storageConfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/config"
)

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(storageConfig.StorageConfig{}))
	assert.Len(t, ClientOptions(storageConfig.StorageConfig{CredentialsFile: "key.json"}), 1)
	// emulator: endpoint plus no-auth
	assert.Len(t, ClientOptions(storageConfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/"}), 2)
	assert.Len(t, ClientOptions(storageConfig.StorageConfig{Endpoint: "https://private", CredentialsFile: "key.json"}), 2)
}

func TestAdapter_RequiresBucket(t *testing.T) {
	a := &gcsAdapter{name: "exports"}
	_, err := a.bucket("")
	assert.ErrorContains(t, err, "bucket_name is not configured")
}
