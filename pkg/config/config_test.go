package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
global:
  source_ref: https://github.com/example/project
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, "sqlite", cfg.History.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.History.Database.SQLite.Path)
	assert.Equal(t, DefaultThreshold, cfg.Analysis.Threshold)
	assert.Equal(t, DefaultWindow, cfg.Analysis.Window)
	assert.Equal(t, DefaultAggregation, cfg.Analysis.Aggregation)
	assert.Equal(t, DefaultDirection, cfg.Analysis.DefaultDirection)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: debug
history:
  database:
    driver: sqlite
    sqlite:
      path: /tmp/history.db
analysis:
  threshold: 1.1
  window: 5
  aggregation: mean
  default_direction: lower_is_better
  directions:
    "throughput/decode": higher_is_better
api:
  listen: ":9090"
  cors_origins:
    - https://ci.example.com
  rate_limit:
    enabled: true
    requests_per_minute: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/history.db", cfg.History.Database.SQLite.Path)
	assert.Equal(t, 1.1, cfg.Analysis.Threshold)
	assert.Equal(t, 5, cfg.Analysis.Window)
	assert.Equal(t, "mean", cfg.Analysis.Aggregation)
	assert.Equal(t,
		"higher_is_better", cfg.Analysis.Directions["throughput/decode"])

	require.NotNil(t, cfg.API)
	assert.Equal(t, ":9090", cfg.API.Listen)
	assert.True(t, cfg.API.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.API.RateLimit.RequestsPerMinute)
}

func TestLoad_MergeFiles(t *testing.T) {
	base := writeConfig(t, `
global:
  log_level: info
analysis:
  threshold: 1.2
`)

	overridePath := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(overridePath, []byte(`
analysis:
  threshold: 1.5
`), 0o644))

	cfg, err := Load(base, overridePath)
	require.NoError(t, err)

	// Later files win; untouched keys survive the merge.
	assert.Equal(t, 1.5, cfg.Analysis.Threshold)
	assert.Equal(t, "info", cfg.Global.LogLevel)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: info
`)

	t.Setenv("REGRESSOOR_GLOBAL_LOG_LEVEL", "warning")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Global.LogLevel)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name: "bad driver",
			mutate: func(cfg *Config) {
				cfg.History.Database.Driver = "oracle"
			},
			wantErr: "unsupported database driver",
		},
		{
			name: "threshold not above 1",
			mutate: func(cfg *Config) {
				cfg.Analysis.Threshold = 0.95
			},
			wantErr: "threshold must be greater than 1.0",
		},
		{
			name: "window below 1",
			mutate: func(cfg *Config) {
				cfg.Analysis.Window = -1
			},
			wantErr: "window must be at least 1",
		},
		{
			name: "unknown aggregation",
			mutate: func(cfg *Config) {
				cfg.Analysis.Aggregation = "median"
			},
			wantErr: "unknown aggregation",
		},
		{
			name: "unknown direction override",
			mutate: func(cfg *Config) {
				cfg.Analysis.Directions = map[string]string{
					"decode": "sideways",
				}
			},
			wantErr: "unknown direction",
		},
		{
			name: "auth user without hash",
			mutate: func(cfg *Config) {
				cfg.API = &APIConfig{
					Listen: ":8080",
					Auth: BasicAuthConfig{
						Enabled: true,
						Users:   []BasicAuthUser{{Username: "ci"}},
					},
				}
			},
			wantErr: "password_hash is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
