package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RESUMEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadFromViper(newTestViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Workflow.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Workflow.PollInterval)
	assert.Equal(t, 3, cfg.Workflow.Policy.MinDiscoveryExchanges)
	assert.Equal(t, 5, cfg.Workflow.Policy.ExportProgressSteps)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, "state.json"))
	assert.Equal(t, "text", cfg.App.DefaultFormat)
	assert.Contains(t, cfg.App.SupportedFormats, "pretty")
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("RESUMEFLOW_WORKFLOW_BASEURL", "https://engine.example.com")
	t.Setenv("RESUMEFLOW_WORKFLOW_POLICY_MINDISCOVERYEXCHANGES", "5")
	t.Setenv("RESUMEFLOW_STORAGE_BACKEND", "sqlite")
	t.Setenv("RESUMEFLOW_STORAGE_PATH", "/tmp/resumeflow-test.db")

	cfg, err := loadFromViper(newTestViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://engine.example.com", cfg.Workflow.BaseURL)
	assert.Equal(t, 5, cfg.Workflow.Policy.MinDiscoveryExchanges)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/resumeflow-test.db", cfg.Storage.Path)
}

func TestSQLiteBackendDerivesDBPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RESUMEFLOW_STORAGE_BACKEND", "SQLite")

	cfg, err := loadFromViper(newTestViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, "state.db"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Workflow: WorkflowConfig{
				BaseURL:      "http://localhost:8000",
				Timeout:      time.Second,
				PollInterval: time.Second,
				Policy:       PolicyConfig{MinDiscoveryExchanges: 3, ExportProgressSteps: 5},
			},
			Storage: StorageConfig{Backend: "memory"},
			App:     AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json", "text"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "relative base url", mutate: func(c *Config) { c.Workflow.BaseURL = "/api" }, wantErr: "base URL"},
		{name: "ftp base url", mutate: func(c *Config) { c.Workflow.BaseURL = "ftp://host" }, wantErr: "base URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.Workflow.Timeout = 0 }, wantErr: "timeout"},
		{name: "zero poll interval", mutate: func(c *Config) { c.Workflow.PollInterval = 0 }, wantErr: "poll interval"},
		{name: "zero exchanges", mutate: func(c *Config) { c.Workflow.Policy.MinDiscoveryExchanges = 0 }, wantErr: "minDiscoveryExchanges"},
		{name: "zero export steps", mutate: func(c *Config) { c.Workflow.Policy.ExportProgressSteps = 0 }, wantErr: "exportProgressSteps"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: "storage backend"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Backend = "file" }, wantErr: "storage path"},
		{name: "unsupported format", mutate: func(c *Config) { c.App.DefaultFormat = "yaml" }, wantErr: "default format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
