// Package config holds the settings of one database connection.
package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings, decoded from adapter.database.<name>.
type DatabaseConfig struct {
	Type     string     `yaml:"type" mapstructure:"type"` // "postgres", "mysql" or "sqlite"
	Host     string     `yaml:"host" mapstructure:"host"`
	Port     int        `yaml:"port" mapstructure:"port"`
	Database string     `yaml:"database" mapstructure:"database"` // database name, or file path for sqlite
	User     string     `yaml:"user" mapstructure:"user"`
	Password string     `yaml:"password" mapstructure:"password"`
	Schema   string     `yaml:"schema,omitempty" mapstructure:"schema"`
	Sslmode  string     `yaml:"sslmode" mapstructure:"sslmode"`
	// DSN, when set, is used verbatim instead of the fields above.
	DSN      string     `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Pool     PoolConfig `yaml:"pool" mapstructure:"pool"`
	// CreateBatchSize is the number of rows per INSERT of a bulk create. 0 uses the adapter default.
	CreateBatchSize int `yaml:"create_batch_size,omitempty" mapstructure:"create_batch_size"`
}
