package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/windfall/uwu_classroom/internal/retry"
)

// Session store backends.
const (
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// Config holds all configuration for the client.
type Config struct {
	// Backend API
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
	APITimeout   time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	APIRateLimit float64       `envconfig:"API_RATE_LIMIT" default:"0"`
	APIRateBurst int           `envconfig:"API_RATE_BURST" default:"5"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	// Session persistence
	SessionStore     string `envconfig:"SESSION_STORE" default:"file"`
	SessionFile      string `envconfig:"SESSION_FILE" default:"~/.uwu_classroom/session.json"`
	SessionKeyPrefix string `envconfig:"SESSION_KEY_PREFIX" default:"uwu_classroom:"`
	RedisURL         string `envconfig:"REDIS_URL"`

	// Azure AI Speech
	AzureAISpeechKey    string `envconfig:"AZURE_AI_SPEECH_KEY"`
	AzureServiceRegion  string `envconfig:"AZURE_SERVICE_REGION"`
	AzureSpeechLanguage string `envconfig:"AZURE_SPEECH_LANGUAGE" default:"en-US"`

	// Upload retries
	UploadRetryMaxAttempts    int           `envconfig:"UPLOAD_RETRY_MAX_ATTEMPTS" default:"3"`
	UploadRetryInitialBackoff time.Duration `envconfig:"UPLOAD_RETRY_INITIAL_BACKOFF" default:"500ms"`
	UploadRetryMaxBackoff     time.Duration `envconfig:"UPLOAD_RETRY_MAX_BACKOFF" default:"4s"`
	UploadRetryMultiplier     float64       `envconfig:"UPLOAD_RETRY_MULTIPLIER" default:"2"`

	UploadBreakerEnabled      bool          `envconfig:"UPLOAD_BREAKER_ENABLED" default:"false"`
	UploadBreakerMinRequests  uint32        `envconfig:"UPLOAD_BREAKER_MIN_REQUESTS" default:"5"`
	UploadBreakerFailureRatio float64       `envconfig:"UPLOAD_BREAKER_FAILURE_RATIO" default:"0.6"`
	UploadBreakerOpenTimeout  time.Duration `envconfig:"UPLOAD_BREAKER_OPEN_TIMEOUT" default:"30s"`

	// Cloudflare R2 (recordings addressed as r2://bucket/key)
	CloudflareAccessKeyID string `envconfig:"CLOUDFLARE_ACCESS_KEY_ID"`
	CloudflareSecretKey   string `envconfig:"CLOUDFLARE_SECRET_ACCESS_KEY"`
	CloudflareR2Endpoint  string `envconfig:"CLOUDFLARE_R2_ENDPOINT"`
	CloudflareBucketName  string `envconfig:"CLOUDFLARE_BUCKET_NAME"`

	// Google Cloud Storage (recordings addressed as gs://bucket/object)
	GCSEnabled bool `envconfig:"GCS_ENABLED" default:"false"`

	// Pub/Sub toast fan-out
	PubSubProjectID  string `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubToastTopic string `envconfig:"PUBSUB_TOAST_TOPIC"`

	// Metrics
	MetricsFile string `envconfig:"METRICS_FILE"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreFile, SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (use file, redis or memory)", c.SessionStore)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	return nil
}

// SessionFilePath returns the session file path with a leading ~ expanded.
func (c *Config) SessionFilePath() string {
	path := c.SessionFile
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// RetryConfig returns the upload retry settings.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:         c.UploadRetryMaxAttempts,
		InitialBackoff:      c.UploadRetryInitialBackoff,
		MaxBackoff:          c.UploadRetryMaxBackoff,
		Multiplier:          c.UploadRetryMultiplier,
		BreakerEnabled:      c.UploadBreakerEnabled,
		BreakerMinRequests:  c.UploadBreakerMinRequests,
		BreakerFailureRatio: c.UploadBreakerFailureRatio,
		BreakerOpenTimeout:  c.UploadBreakerOpenTimeout,
	}
}

// HasAzureSpeech returns true if the scoring service is configured.
func (c *Config) HasAzureSpeech() bool {
	return c.AzureAISpeechKey != "" && c.AzureServiceRegion != ""
}

// HasR2 returns true if the Cloudflare R2 blob source is configured.
func (c *Config) HasR2() bool {
	return c.CloudflareAccessKeyID != "" && c.CloudflareSecretKey != "" && c.CloudflareR2Endpoint != ""
}

// HasPubSub returns true if toasts should also be published to Pub/Sub.
func (c *Config) HasPubSub() bool {
	return c.PubSubProjectID != "" && c.PubSubToastTopic != ""
}
