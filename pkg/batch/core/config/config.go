// Package config defines the sheetflow configuration tree and how it is loaded.
package config

import "time"

// EmbeddedConfig holds the raw bytes of the application.yaml compiled into the binary.
type EmbeddedConfig []byte

// LogLevel is the textual log level used in configuration.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Supersede policies for replacing a tenant's previous data.
const (
	SupersedeNone        = "none"
	SupersedeBeforeWrite = "before_write"
	SupersedeAfterCommit = "after_commit"
)

// DefaultLockKind is used when a caller passes an empty lock kind.
const DefaultLockKind = "processing"

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// SQLLevel controls gorm's own statement logging (SILENT, ERROR, WARN, INFO).
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LockConfig holds tenant lock settings.
type LockConfig struct {
	// DefaultTTLMinutes applies when Acquire is called with a zero or negative TTL.
	DefaultTTLMinutes int `yaml:"default_ttl_minutes"`
	// Holder is recorded on each lease row for diagnostics. Empty means hostname.
	Holder string `yaml:"holder"`
}

// DefaultTTL returns the configured default lease lifetime.
func (c LockConfig) DefaultTTL() time.Duration {
	if c.DefaultTTLMinutes <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

// PurgeConfig holds supersede settings.
type PurgeConfig struct {
	SupersedePolicy string `yaml:"supersede_policy"`
}

// InfrastructureConfig names the adapter connections the core runs on.
type InfrastructureConfig struct {
	StoreDBRef string `yaml:"store_db_ref"`
	StorageRef string `yaml:"storage_ref"`
}

// OTLPConfig configures OpenTelemetry export. An empty Endpoint disables it.
type OTLPConfig struct {
	Protocol    string `yaml:"protocol"` // "grpc" or "http"
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	Enabled       bool       `yaml:"enabled"`
	ListenAddress string     `yaml:"listen_address"`
	OTLP          OTLPConfig `yaml:"otlp"`
}

// RetryConfig holds backoff settings for store unavailability.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`
	InitialIntervalMs int `yaml:"initial_interval_ms"`
}

// PipelineConfig holds settings of the reference pipeline stages.
type PipelineConfig struct {
	KeyColumn         string      `yaml:"key_column"`
	EntityType        string      `yaml:"entity_type"`
	SheetName         string      `yaml:"sheet_name"`
	IncomingPrefix    string      `yaml:"incoming_prefix"`
	ExportPrefix      string      `yaml:"export_prefix"`
	ArchivePrefix     string      `yaml:"archive_prefix"`
	ExportCompression string      `yaml:"export_compression"`
	Retry             RetryConfig `yaml:"retry"`
}

// SheetflowConfig is the root of all sheetflow settings.
type SheetflowConfig struct {
	System         SystemConfig         `yaml:"system"`
	Lock           LockConfig           `yaml:"lock"`
	Purge          PurgeConfig          `yaml:"purge"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	// AdapterConfigs holds raw adapter sections keyed by adapter kind
	// ("database", "storage"), each a map of connection name to settings.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root configuration structure.
type Config struct {
	Sheetflow      SheetflowConfig `yaml:"sheetflow"`
	EmbeddedConfig EmbeddedConfig  `yaml:"-"`
}

// GlobalConfig is set by NewConfigProvider.
var GlobalConfig *Config

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Sheetflow: SheetflowConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Lock: LockConfig{
				DefaultTTLMinutes: 240,
			},
			Purge: PurgeConfig{
				SupersedePolicy: SupersedeNone,
			},
			Infrastructure: InfrastructureConfig{
				StoreDBRef: "sheetflow",
				StorageRef: "landing",
			},
			Metrics: MetricsConfig{
				Enabled:       false,
				ListenAddress: ":9090",
				OTLP: OTLPConfig{
					Protocol:    "grpc",
					ServiceName: "sheetflow",
				},
			},
			Pipeline: PipelineConfig{
				KeyColumn:         "id",
				EntityType:        "row",
				IncomingPrefix:    "incoming/",
				ExportPrefix:      "export/",
				ArchivePrefix:     "archive/",
				ExportCompression: "SNAPPY",
				Retry: RetryConfig{
					MaxAttempts:       5,
					InitialIntervalMs: 500,
				},
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
