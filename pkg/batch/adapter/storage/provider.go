package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// OpenFunc opens a connection from its settings.
type OpenFunc func(cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

// BaseProvider opens and caches storage connections of one type.
type BaseProvider struct {
	cfg         *coreConfig.Config
	storageType string
	open        OpenFunc
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewBaseProvider creates a provider that opens connections with open.
func NewBaseProvider(cfg *coreConfig.Config, storageType string, open OpenFunc) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		storageType: storageType,
		open:        open,
		connections: make(map[string]StorageConnection),
	}
}

func (p *BaseProvider) Type() string {
	return p.storageType
}

// GetConnection returns the cached connection, opening it on first use.
func (p *BaseProvider) GetConnection(name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	return p.openLocked(name)
}

// ForceReconnect closes the named connection and opens a fresh one.
func (p *BaseProvider) ForceReconnect(name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.connections[name]; ok {
		if err := existing.Close(); err != nil {
			logger.Warnf("Failed to close storage connection '%s' before reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	return p.openLocked(name)
}

func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

func (p *BaseProvider) openLocked(name string) (StorageConnection, error) {
	storageCfg, err := storageConfig.Lookup(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type != p.storageType {
		return nil, fmt.Errorf("provider type mismatch: expected '%s', got '%s' for storage connection '%s'", p.storageType, storageCfg.Type, name)
	}
	conn, err := p.open(storageCfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Infof("Opened storage connection: %s (%s)", name, p.storageType)
	return conn, nil
}

var _ StorageProvider = (*BaseProvider)(nil)
