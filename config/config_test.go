package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4242", cfg.HTTPPort)
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, "googlenews", cfg.EnabledProviders)
	assert.Equal(t, 3, cfg.CollectWindow)
	assert.Equal(t, 24, cfg.InboxTarget)
	assert.Equal(t, "http://localhost:11434", cfg.LLMBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("COLLECT_WINDOW_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 7, cfg.CollectWindow)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p", DBName: "cards"}
	assert.Equal(t, "host=db user=u password=p dbname=cards port=5433 sslmode=disable", cfg.DSN())
}
