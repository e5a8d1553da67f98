package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("UNSUBSCRIBE_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "us-east-1", cfg.AWS.DefaultRegion)
	assert.Equal(t, 50, cfg.Dispatch.DefaultTransactionalPct)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte("server:\n  port: 9000\napp:\n  base_url: https://file.example.com\n"), 0o644)
	require.NoError(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("UNSUBSCRIBE_SECRET", "s3cret")
	t.Setenv("APP_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://env.example.com", cfg.App.BaseURL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("UNSUBSCRIBE_SECRET", "")

	_, err := Load("")
	assert.Error(t, err)
}
