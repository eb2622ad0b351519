package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config file lookup at a temp path so tests never
// read the developer's real configuration.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("ASKDB_CONFIG", filepath.Join(dir, "config.json"))

	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 2, cfg.Pipeline.RetryBudget)
	assert.Equal(t, 3, cfg.Pipeline.MaxTemplates)
	assert.InDelta(t, 0.95, cfg.Pipeline.ReuseThreshold, 0.001)
	assert.Equal(t, 500, cfg.Database.RowCap)
	assert.Equal(t, ":8420", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ASKDB_LLM_PROVIDER", "openai")
	t.Setenv("ASKDB_DB_ROW_CAP", "100")
	t.Setenv("ASKDB_PIPELINE_RETRY_BUDGET", "5")
	t.Setenv("ASKDB_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 100, cfg.Database.RowCap)
	assert.Equal(t, 5, cfg.Pipeline.RetryBudget)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := isolate(t)

	fileContent := `{
		"database": {"path": "/data/warehouse.db", "row_cap": 250},
		"llm": {"provider": "anthropic", "model": "claude-sonnet-4-5", "api_key": "k"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(fileContent), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/data/warehouse.db", cfg.Database.Path)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)

	// Untouched fields keep their defaults.
	assert.Equal(t, 2, cfg.Pipeline.RetryBudget)
}

func TestLoadConfigFlagOverridesWin(t *testing.T) {
	isolate(t)
	t.Setenv("ASKDB_DB_PATH", "/env/path.db")

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{
		"db-path":   "/flag/path.db",
		"log-level": "warn",
	})
	require.NoError(t, err)

	assert.Equal(t, "/flag/path.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad log level", map[string]string{"ASKDB_LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"ASKDB_LOG_FORMAT": "xml"}},
		{"bad timeout", map[string]string{"ASKDB_DB_QUERY_TIMEOUT": "soon"}},
		{"zero row cap", map[string]string{"ASKDB_DB_ROW_CAP": "0"}},
		{"negative retry budget", map[string]string{"ASKDB_PIPELINE_RETRY_BUDGET": "-1"}},
		{"reuse threshold above one", map[string]string{"ASKDB_PIPELINE_REUSE_THRESHOLD": "1.5"}},
		{"zero embedding dims", map[string]string{"ASKDB_EMBEDDING_DIMS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestStageTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, StageTimeout("5s"))
	assert.Equal(t, 60*time.Second, StageTimeout(""))
	assert.Equal(t, 60*time.Second, StageTimeout("eventually"))
}

func TestQueryTimeoutDuration(t *testing.T) {
	c := DatabaseConfig{QueryTimeout: "45s"}
	assert.Equal(t, 45*time.Second, c.QueryTimeoutDuration())

	c.QueryTimeout = "bogus"
	assert.Equal(t, 30*time.Second, c.QueryTimeoutDuration())
}

func TestExpandAllPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{}
	cfg.Database.Path = "~/data.db"
	cfg.Templates.Path = "/abs/templates.db"

	cfg.ExpandAllPaths()

	assert.Equal(t, filepath.Join(home, "data.db"), cfg.Database.Path)
	assert.Equal(t, "/abs/templates.db", cfg.Templates.Path)
}
