// Package config loads the batching service's configuration from a YAML
// file, with secrets and deployment-specific values overridable via
// environment variables (spec.md §6).
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the batching service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	SQS      SQSConfig      `yaml:"sqs"`
	Provider ProviderConfig `yaml:"provider"`
	Batching BatchingConfig `yaml:"batching"`
}

// ServerConfig holds HTTP server configuration for the batch submission API.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// PostgresConfig holds the store connection string.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the rate governor / enrichment lease connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// S3Config holds the object storage bucket used for uploads and exports.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// SQSConfig holds the completion-notification queue.
type SQSConfig struct {
	CompletionQueueURL string `yaml:"completion_queue_url"`
}

// ProviderConfig holds the external verification provider's client
// credentials and retry budget (spec.md §6, §7).
type ProviderConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
	MaxRetries   int    `yaml:"max_retries"`
}

// BatchingConfig holds the packer/rate-governor/lifecycle tunables named in
// spec.md §6's "Configuration" table.
type BatchingConfig struct {
	MaxConcurrentProviderBatches   int `yaml:"max_concurrent_provider_batches"`
	MaxEmailsPerProviderBatch      int `yaml:"max_emails_per_provider_batch"`
	RateLimitPerMinute             int `yaml:"rate_limit_per_minute"`
	RateLimitBuffer                int `yaml:"rate_limit_buffer"`
	ProviderBatchTimeoutHours      int `yaml:"provider_batch_timeout_hours"`
	PollIntervalSeconds            int `yaml:"poll_interval_seconds"`
	EnrichmentProgressIntervalRows int `yaml:"enrichment_progress_interval_rows"`
}

// ProviderBatchTimeout returns the configured provider-batch timeout as a
// duration.
func (c BatchingConfig) ProviderBatchTimeout() time.Duration {
	return time.Duration(c.ProviderBatchTimeoutHours) * time.Hour
}

// PollInterval returns the configured poll/pack cadence as a duration.
func (c BatchingConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// UsableRateLimit returns the rate limit minus its safety buffer — the
// figure the rate governor actually enforces (spec.md §4.3).
func (c BatchingConfig) UsableRateLimit() int {
	return c.RateLimitPerMinute - c.RateLimitBuffer
}

// Load reads and parses the configuration file, applying spec.md §6
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Batching.MaxConcurrentProviderBatches == 0 {
		cfg.Batching.MaxConcurrentProviderBatches = 10
	}
	if cfg.Batching.MaxEmailsPerProviderBatch == 0 {
		cfg.Batching.MaxEmailsPerProviderBatch = 10000
	}
	if cfg.Batching.RateLimitPerMinute == 0 {
		cfg.Batching.RateLimitPerMinute = 200
	}
	if cfg.Batching.RateLimitBuffer == 0 {
		cfg.Batching.RateLimitBuffer = 20
	}
	if cfg.Batching.ProviderBatchTimeoutHours == 0 {
		cfg.Batching.ProviderBatchTimeoutHours = 24
	}
	if cfg.Batching.PollIntervalSeconds == 0 {
		cfg.Batching.PollIntervalSeconds = 5
	}
	if cfg.Batching.EnrichmentProgressIntervalRows == 0 {
		cfg.Batching.EnrichmentProgressIntervalRows = 10000
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML file, then a .env file if present, then
// applies environment-variable overrides for secrets and deployment
// endpoints that should never be committed to the config file.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if queueURL := os.Getenv("COMPLETION_QUEUE_URL"); queueURL != "" {
		cfg.SQS.CompletionQueueURL = queueURL
	}
	if baseURL := os.Getenv("PROVIDER_BASE_URL"); baseURL != "" {
		cfg.Provider.BaseURL = baseURL
	}
	if clientID := os.Getenv("PROVIDER_CLIENT_ID"); clientID != "" {
		cfg.Provider.ClientID = clientID
	}
	if clientSecret := os.Getenv("PROVIDER_CLIENT_SECRET"); clientSecret != "" {
		cfg.Provider.ClientSecret = clientSecret
	}
	if tokenURL := os.Getenv("PROVIDER_TOKEN_URL"); tokenURL != "" {
		cfg.Provider.TokenURL = tokenURL
	}

	return cfg, nil
}
