package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, "UTC", cfg.Sheetflow.System.Timezone)
	assert.Equal(t, "INFO", cfg.Sheetflow.System.Logging.Level)
	assert.Equal(t, 4*time.Hour, cfg.Sheetflow.Lock.DefaultTTL())
	assert.Equal(t, config.SupersedeNone, cfg.Sheetflow.Purge.SupersedePolicy)
	assert.Equal(t, "sheetflow", cfg.Sheetflow.Infrastructure.StoreDBRef)
	assert.False(t, cfg.Sheetflow.Metrics.Enabled)
	assert.NoError(t, config.Validate(cfg))
}

func TestLockConfig_DefaultTTL(t *testing.T) {
	assert.Equal(t, 90*time.Minute, config.LockConfig{DefaultTTLMinutes: 90}.DefaultTTL())
	assert.Equal(t, 4*time.Hour, config.LockConfig{}.DefaultTTL())
	assert.Equal(t, 4*time.Hour, config.LockConfig{DefaultTTLMinutes: -5}.DefaultTTL())
}

const embeddedYAML = `
sheetflow:
  system:
    logging:
      level: DEBUG
  lock:
    default_ttl_minutes: 120
    holder: ${SHEETFLOW_TEST_HOLDER}
  purge:
    supersede_policy: after_commit
  adapter:
    database:
      sheetflow:
        type: sqlite
        database: /tmp/sheetflow.db
`

func TestLoadConfig_Layers(t *testing.T) {
	t.Setenv("SHEETFLOW_TEST_HOLDER", "worker-7")
	t.Setenv("SHEETFLOW_METRICS_LISTEN_ADDRESS", ":9999")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"), config.EmbeddedConfig(embeddedYAML))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Sheetflow.System.Logging.Level)
	assert.Equal(t, "UTC", cfg.Sheetflow.System.Timezone, "defaults survive when YAML omits a value")
	assert.Equal(t, 2*time.Hour, cfg.Sheetflow.Lock.DefaultTTL())
	assert.Equal(t, "worker-7", cfg.Sheetflow.Lock.Holder)
	assert.Equal(t, config.SupersedeAfterCommit, cfg.Sheetflow.Purge.SupersedePolicy)
	assert.Equal(t, ":9999", cfg.Sheetflow.Metrics.ListenAddress)

	dbSection, ok := cfg.Sheetflow.AdapterConfigs["database"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, dbSection, "sheetflow")
}

func TestLoadConfig_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SHEETFLOW_LOCK_DEFAULT_TTL_MINUTES=15\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SHEETFLOW_LOCK_DEFAULT_TTL_MINUTES") })

	cfg, err := config.LoadConfig(envFile, config.EmbeddedConfig("sheetflow: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Sheetflow.Lock.DefaultTTL())
}

func TestValidate(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sheetflow.Purge.SupersedePolicy = "sometimes"
	assert.Error(t, config.Validate(cfg))

	cfg = config.NewConfig()
	cfg.Sheetflow.Infrastructure.StoreDBRef = ""
	assert.Error(t, config.Validate(cfg))

	cfg = config.NewConfig()
	cfg.Sheetflow.Metrics.OTLP.Protocol = "udp"
	assert.Error(t, config.Validate(cfg))
}

func TestOsEnvironmentExpander_Defaults(t *testing.T) {
	t.Setenv("SHEETFLOW_TEST_SET", "postgres")
	t.Setenv("SHEETFLOW_TEST_EMPTY", "")

	out, err := config.NewOsEnvironmentExpander().Expand([]byte("a: ${SHEETFLOW_TEST_SET:-sqlite}\nb: ${SHEETFLOW_TEST_UNSET:-./data}\nc: ${SHEETFLOW_TEST_EMPTY:-x}\nd: ${SHEETFLOW_TEST_UNSET}\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: postgres\nb: ./data\nc: x\nd: \n", string(out))
}
