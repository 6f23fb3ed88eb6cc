package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds one named entry under adapter.database.
type DatabaseConfig struct {
	Type     string     `yaml:"type"` // "postgres", "mysql" or "sqlite".
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	Database string     `yaml:"database"` // Database name, or the file path for sqlite.
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Sslmode  string     `yaml:"sslmode"`
	LogLevel string     `yaml:"log_level"` // GORM log level: silent, error, warn, info.
	Pool     PoolConfig `yaml:"pool"`
}
