package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams are the fx inputs of NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig builds the configuration in four layers:
// .env file, NewConfig defaults, embedded YAML (non-zero values win), environment variables.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewSheetError(moduleName, "failed to expand environment references in embedded config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewSheetError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewSheetError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider loads the configuration, validates it and applies the log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, exception.NewSheetError(moduleName, "invalid configuration", err, false, false)
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Sheetflow.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Sheetflow.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads the configuration outside of fx (CLI flag parsing runs before the container).
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// Validate checks values that have a closed set of legal settings.
func Validate(cfg *Config) error {
	switch cfg.Sheetflow.Purge.SupersedePolicy {
	case SupersedeNone, SupersedeBeforeWrite, SupersedeAfterCommit:
	default:
		return fmt.Errorf("unknown supersede_policy '%s' (expected %s, %s or %s)",
			cfg.Sheetflow.Purge.SupersedePolicy, SupersedeNone, SupersedeBeforeWrite, SupersedeAfterCommit)
	}
	if cfg.Sheetflow.Infrastructure.StoreDBRef == "" {
		return fmt.Errorf("infrastructure.store_db_ref must not be empty")
	}
	switch strings.ToLower(cfg.Sheetflow.Metrics.OTLP.Protocol) {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unknown metrics.otlp.protocol '%s'", cfg.Sheetflow.Metrics.OTLP.Protocol)
	}
	return nil
}

func mergeConfig(destConfig, sourceConfig *Config) {
	mergeSheetflowConfig(&destConfig.Sheetflow, &sourceConfig.Sheetflow)
}

func mergeSheetflowConfig(dest, source *SheetflowConfig) {
	mergeSystemConfig(&dest.System, &source.System)

	if source.Lock.DefaultTTLMinutes != 0 {
		dest.Lock.DefaultTTLMinutes = source.Lock.DefaultTTLMinutes
	}
	if source.Lock.Holder != "" {
		dest.Lock.Holder = source.Lock.Holder
	}
	if source.Purge.SupersedePolicy != "" {
		dest.Purge.SupersedePolicy = source.Purge.SupersedePolicy
	}
	if source.Infrastructure.StoreDBRef != "" {
		dest.Infrastructure.StoreDBRef = source.Infrastructure.StoreDBRef
	}
	if source.Infrastructure.StorageRef != "" {
		dest.Infrastructure.StorageRef = source.Infrastructure.StorageRef
	}

	mergeMetricsConfig(&dest.Metrics, &source.Metrics)
	mergePipelineConfig(&dest.Pipeline, &source.Pipeline)

	if source.AdapterConfigs != nil {
		if dest.AdapterConfigs == nil {
			dest.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdapterConfigs {
			dest.AdapterConfigs[key] = value
		}
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
	if source.Logging.SQLLevel != "" {
		dest.Logging.SQLLevel = source.Logging.SQLLevel
	}
}

func mergeMetricsConfig(dest, source *MetricsConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.ListenAddress != "" {
		dest.ListenAddress = source.ListenAddress
	}
	if source.OTLP.Protocol != "" {
		dest.OTLP.Protocol = source.OTLP.Protocol
	}
	if source.OTLP.Endpoint != "" {
		dest.OTLP.Endpoint = source.OTLP.Endpoint
	}
	if source.OTLP.Insecure {
		dest.OTLP.Insecure = true
	}
	if source.OTLP.ServiceName != "" {
		dest.OTLP.ServiceName = source.OTLP.ServiceName
	}
}

func mergePipelineConfig(dest, source *PipelineConfig) {
	if source.KeyColumn != "" {
		dest.KeyColumn = source.KeyColumn
	}
	if source.EntityType != "" {
		dest.EntityType = source.EntityType
	}
	if source.SheetName != "" {
		dest.SheetName = source.SheetName
	}
	if source.IncomingPrefix != "" {
		dest.IncomingPrefix = source.IncomingPrefix
	}
	if source.ExportPrefix != "" {
		dest.ExportPrefix = source.ExportPrefix
	}
	if source.ArchivePrefix != "" {
		dest.ArchivePrefix = source.ArchivePrefix
	}
	if source.ExportCompression != "" {
		dest.ExportCompression = source.ExportCompression
	}
	if source.Retry.MaxAttempts != 0 {
		dest.Retry.MaxAttempts = source.Retry.MaxAttempts
	}
	if source.Retry.InitialIntervalMs != 0 {
		dest.Retry.InitialIntervalMs = source.Retry.InitialIntervalMs
	}
}

// loadStructFromEnv overrides fields from environment variables named after
// the upper-cased yaml path, e.g. SHEETFLOW_LOCK_DEFAULT_TTL_MINUTES.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Map {
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
				if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
					return err
				}
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv fills map entries from variables shaped PREFIX_<KEY>_<FIELD>.
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndFieldParts := strings.Split(parts[0], "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])
		structFieldName := strings.Join(keyAndFieldParts[1:], "_")

		structVal := reflect.New(elemType).Elem()
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			structVal.Set(existing)
		}
		if err := setStructFieldFromEnv(structVal, structFieldName, parts[1]); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		yamlTag := strings.Split(typ.Field(i).Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		if strings.EqualFold(yamlTag, fieldName) {
			return setField(structVal.Field(i), value)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
