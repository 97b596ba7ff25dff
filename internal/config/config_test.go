package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.True(t, cfg.App.Development())
	assert.True(t, cfg.Database.InMemory())
	assert.Equal(t, WorkflowLocal, cfg.Workflow.Mode)
	assert.Equal(t, "po-default", cfg.Workflow.DefinitionID)
	assert.Equal(t, 5*time.Second, cfg.Workflow.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, DevJWTSecret, cfg.Auth.JWTSecret)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(envMap(map[string]string{
		"APP_PORT":           "9000",
		"APP_ENV":            "production",
		"DATABASE_URL":       "postgres://localhost/procurement",
		"DB_APPLY_SCHEMA":    "true",
		"JWT_SECRET":         "s3cret",
		"WORKFLOW_MODE":      "HTTP",
		"WORKFLOW_URL":       "http://workflow:8080",
		"WORKFLOW_TIMEOUT":   "2s",
		"PO_WORKFLOW_ID":     "po-capex",
		"NOTIFY_WEBHOOK_URL": "http://hooks/po",
		"WRITE_TIMEOUT":      "45s",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.App.Development())
	assert.False(t, cfg.Database.InMemory())
	assert.True(t, cfg.Database.ApplySchema)
	assert.Equal(t, WorkflowHTTP, cfg.Workflow.Mode)
	assert.Equal(t, 2*time.Second, cfg.Workflow.Timeout)
	assert.Equal(t, "po-capex", cfg.Workflow.DefinitionID)
	assert.Equal(t, "http://hooks/po", cfg.Notify.WebhookURL)
	assert.Equal(t, 45*time.Second, cfg.WriteTimeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"WORKFLOW_TIMEOUT": "soon"}, "WORKFLOW_TIMEOUT"},
		{"bad bool", map[string]string{"DB_APPLY_SCHEMA": "maybe"}, "DB_APPLY_SCHEMA"},
		{"bad port", map[string]string{"APP_PORT": "http"}, "APP_PORT"},
		{"unknown mode", map[string]string{"WORKFLOW_MODE": "grpc"}, "WORKFLOW_MODE"},
		{"http without url", map[string]string{"WORKFLOW_MODE": "http"}, "WORKFLOW_URL"},
		{"dev secret in production", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
		{"zero write timeout", map[string]string{"WRITE_TIMEOUT": "0s"}, "WRITE_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nAPP_PORT=7070\n"), 0o600))

	// Registered with t.Setenv so the values godotenv writes are restored.
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "9090", cfg.App.Port, "environment wins over the file")
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
