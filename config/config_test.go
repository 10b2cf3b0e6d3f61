package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8081", AllowedOrigins: []string{"http://localhost:3000"}},
		Database: DatabaseConfig{URL: "postgres://localhost/flowsync"},
		Webflow:  WebflowConfig{WriteConcurrency: 1, WebhookSecret: "whsec"},
		Notion:   NotionConfig{WriteConcurrency: 2, AppendBatchSize: 100},
		Auth:     AuthConfig{JWTSecret: "secret"},
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected bool
	}{
		{
			name:     "development environment",
			config:   &Config{Server: ServerConfig{AppEnv: "development"}},
			expected: true,
		},
		{
			name:     "debug gin mode",
			config:   &Config{Server: ServerConfig{GinMode: "debug"}},
			expected: true,
		},
		{
			name:     "release mode",
			config:   &Config{Server: ServerConfig{GinMode: "release", AppEnv: "production"}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.IsDevelopment())
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	assert.True(t, (&Config{Server: ServerConfig{AppEnv: "production"}}).IsProduction())
	assert.False(t, (&Config{Server: ServerConfig{AppEnv: "staging"}}).IsProduction())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:     "missing database url",
			mutate:   func(c *Config) { c.Database.URL = "" },
			errorMsg: "DATABASE_URL is required",
		},
		{
			name:     "missing jwt secret",
			mutate:   func(c *Config) { c.Auth.JWTSecret = "" },
			errorMsg: "JWT_SECRET is required",
		},
		{
			name:     "missing webhook secret",
			mutate:   func(c *Config) { c.Webflow.WebhookSecret = "" },
			errorMsg: "WEBFLOW_WEBHOOK_SECRET is required",
		},
		{
			name:     "zero notion concurrency",
			mutate:   func(c *Config) { c.Notion.WriteConcurrency = 0 },
			errorMsg: "NOTION_WRITE_CONCURRENCY",
		},
		{
			name:     "append batch above notion limit",
			mutate:   func(c *Config) { c.Notion.AppendBatchSize = 101 },
			errorMsg: "NOTION_APPEND_BATCH_SIZE",
		},
		{
			name: "profiling without endpoint",
			mutate: func(c *Config) {
				c.Profiling.Enabled = true
			},
			errorMsg: "O11Y_PROFILING_ENDPOINT is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/flowsync")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WEBFLOW_WEBHOOK_SECRET", "whsec")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Notion.WriteConcurrency)
	assert.Equal(t, 1, cfg.Webflow.WriteConcurrency)
	assert.Equal(t, 350*time.Millisecond, cfg.Notion.CreateDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Notion.ConflictBackoff)
	assert.Equal(t, 100, cfg.Notion.AppendBatchSize)
	assert.Equal(t, "2022-06-28", cfg.Notion.Version)
	assert.Empty(t, cfg.Sync.Schedule)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://db/flowsync")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WEBFLOW_WEBHOOK_SECRET", "whsec")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("NOTION_WRITE_CONCURRENCY", "1")
	t.Setenv("SYNC_SCHEDULE", "0 */6 * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 1, cfg.Notion.WriteConcurrency)
	assert.Equal(t, "0 */6 * * *", cfg.Sync.Schedule)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
}
