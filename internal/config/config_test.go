package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DbType)
	assert.Equal(t, "modengine.db", cfg.SqlitePath)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "", cfg.ModulesPath)
	assert.False(t, cfg.MinioUseSSL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MODENGINE_SERVER_PORT", "9090")
	t.Setenv("MODENGINE_DB_TYPE", "postgres")
	t.Setenv("MODENGINE_MODULES_PATH", "/etc/modengine/modules")
	t.Setenv("MODENGINE_MINIO_USE_SSL", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DbType)
	assert.Equal(t, "/etc/modengine/modules", cfg.ModulesPath)
	assert.True(t, cfg.MinioUseSSL)
}
