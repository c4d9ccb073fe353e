package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the module engine server (and the CLI target URL).
type Config struct {
	// Server specific configuration
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"` // debug, info, warn, error

	// Database configuration
	DbType     string `mapstructure:"DB_TYPE"`      // "postgres" or "sqlite"
	DbDsn      string `mapstructure:"DB_DSN"`       // Data Source Name for Postgres
	SqlitePath string `mapstructure:"SQLITE_PATH"`  // Path for SQLite database file
	DbLogLevel string `mapstructure:"DB_LOG_LEVEL"` // silent, error, warn, info

	// Storage configuration (registry backups)
	StorageType      string `mapstructure:"STORAGE_TYPE"`       // "minio" or "local"
	LocalStoragePath string `mapstructure:"LOCAL_STORAGE_PATH"` // Path for local file storage

	// MinIO specific configuration (only used if StorageType is "minio")
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	// Module discovery: directory scanned for *.hcl module manifests. Empty disables it.
	ModulesPath string `mapstructure:"MODULES_PATH"`

	// Authentication
	AuthToken string `mapstructure:"AUTH_TOKEN"` // Static bearer token for lifecycle operations

	// URL the CLI connects to
	EngineURL string `mapstructure:"ENGINE_URL"`
}

// LoadConfig loads configuration from MODENGINE_* environment variables and sets defaults.
func LoadConfig() (config Config, err error) {
	v := viper.New()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("DB_DSN", "host=localhost user=postgres password=postgres dbname=modengine port=5432 sslmode=disable")
	v.SetDefault("SQLITE_PATH", "modengine.db")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("STORAGE_TYPE", "local")
	v.SetDefault("LOCAL_STORAGE_PATH", "./modengine-storage")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "modengine-backups")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MODULES_PATH", "")
	v.SetDefault("AUTH_TOKEN", "supersecrettoken") // CHANGE THIS IN PRODUCTION
	v.SetDefault("ENGINE_URL", "http://localhost:8080")

	v.SetEnvPrefix("MODENGINE") // e.g., MODENGINE_SERVER_PORT, MODENGINE_DB_DSN
	v.AutomaticEnv()

	err = v.Unmarshal(&config)
	return
}
