package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Webflow       WebflowConfig
	Notion        NotionConfig
	Sync          SyncConfig
	Auth          AuthConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type DatabaseConfig struct {
	URL           string
	MaxConns      int32
	MinConns      int32
	CACertPath    string
	TLSServerName string
}

type WebflowConfig struct {
	BaseURL string
	// WriteConcurrency caps in-flight item and field mutations
	WriteConcurrency int
	// RequestsPerMinute paces every Webflow call made by one client
	RequestsPerMinute int
	WebhookSecret     string
	// WebhookMaxSkew rejects signed deliveries older than this
	WebhookMaxSkew time.Duration
}

type NotionConfig struct {
	BaseURL          string
	Version          string
	WriteConcurrency int
	// CreateDelay is slept after every page or database create, even on success
	CreateDelay     time.Duration
	ConflictBackoff time.Duration
	AppendBatchSize int
	AppendDelay     time.Duration
}

type SyncConfig struct {
	// Schedule is a cron spec for the repair re-sync; empty disables it
	Schedule          string
	SchemaCacheTTL    time.Duration
	CompletionTrigger string
	RunTimeout        time.Duration
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAX_BODY_BYTES", 5<<20)
	v.SetDefault("DATABASE_MAX_CONNS", 20)
	v.SetDefault("DATABASE_MIN_CONNS", 2)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)

	v.SetDefault("WEBFLOW_API_URL", "https://api.webflow.com/v2")
	v.SetDefault("WEBFLOW_WRITE_CONCURRENCY", 1)
	v.SetDefault("WEBFLOW_REQUESTS_PER_MINUTE", 60)
	v.SetDefault("WEBFLOW_WEBHOOK_MAX_SKEW", "5m")

	v.SetDefault("NOTION_API_URL", "https://api.notion.com")
	v.SetDefault("NOTION_API_VERSION", "2022-06-28")
	v.SetDefault("NOTION_WRITE_CONCURRENCY", 2)
	v.SetDefault("NOTION_CREATE_DELAY", "350ms")
	v.SetDefault("NOTION_CONFLICT_BACKOFF", "1500ms")
	v.SetDefault("NOTION_APPEND_BATCH_SIZE", 100)
	v.SetDefault("NOTION_APPEND_DELAY", "350ms")

	v.SetDefault("SYNC_SCHEDULE", "")
	v.SetDefault("SYNC_SCHEMA_CACHE_TTL", "10m")
	v.SetDefault("SYNC_RUN_TIMEOUT", "2h")

	v.SetDefault("JWT_ISSUER", "flowsync-api")

	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_BE_SERVICE_NAME", "flowsync-api")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "flowsync")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "flowsync-api")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,goroutines")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
			MaxBodyBytes:   v.GetInt64("MAX_BODY_BYTES"),
		},
		Database: DatabaseConfig{
			URL:           v.GetString("DATABASE_URL"),
			MaxConns:      v.GetInt32("DATABASE_MAX_CONNS"),
			MinConns:      v.GetInt32("DATABASE_MIN_CONNS"),
			CACertPath:    v.GetString("DATABASE_CA_CERT"),
			TLSServerName: v.GetString("DATABASE_TLS_SERVER_NAME"),
		},
		Webflow: WebflowConfig{
			BaseURL:           v.GetString("WEBFLOW_API_URL"),
			WriteConcurrency:  v.GetInt("WEBFLOW_WRITE_CONCURRENCY"),
			RequestsPerMinute: v.GetInt("WEBFLOW_REQUESTS_PER_MINUTE"),
			WebhookSecret:     v.GetString("WEBFLOW_WEBHOOK_SECRET"),
			WebhookMaxSkew:    v.GetDuration("WEBFLOW_WEBHOOK_MAX_SKEW"),
		},
		Notion: NotionConfig{
			BaseURL:          v.GetString("NOTION_API_URL"),
			Version:          v.GetString("NOTION_API_VERSION"),
			WriteConcurrency: v.GetInt("NOTION_WRITE_CONCURRENCY"),
			CreateDelay:      v.GetDuration("NOTION_CREATE_DELAY"),
			ConflictBackoff:  v.GetDuration("NOTION_CONFLICT_BACKOFF"),
			AppendBatchSize:  v.GetInt("NOTION_APPEND_BATCH_SIZE"),
			AppendDelay:      v.GetDuration("NOTION_APPEND_DELAY"),
		},
		Sync: SyncConfig{
			Schedule:          v.GetString("SYNC_SCHEDULE"),
			SchemaCacheTTL:    v.GetDuration("SYNC_SCHEMA_CACHE_TTL"),
			CompletionTrigger: v.GetString("SYNC_COMPLETED_TRIGGER_URL"),
			RunTimeout:        v.GetDuration("SYNC_RUN_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			JWTIssuer: v.GetString("JWT_ISSUER"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Dir:        v.GetString("LOG_DIR"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Webflow.WebhookSecret == "" {
		return fmt.Errorf("WEBFLOW_WEBHOOK_SECRET is required")
	}

	if c.Webflow.WriteConcurrency < 1 {
		return fmt.Errorf("WEBFLOW_WRITE_CONCURRENCY must be at least 1")
	}
	if c.Notion.WriteConcurrency < 1 {
		return fmt.Errorf("NOTION_WRITE_CONCURRENCY must be at least 1")
	}
	if c.Notion.AppendBatchSize < 1 || c.Notion.AppendBatchSize > 100 {
		return fmt.Errorf("NOTION_APPEND_BATCH_SIZE must be between 1 and 100")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}
