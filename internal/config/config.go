package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Webhook ingestion
	WebhookSigningSecret string
	DedupBackend         string
	DedupTTL             time.Duration
	DedupMaxEntries      int
	RawPayloadBucket     string
	WebhookRateLimit     int
	WebhookRateBurst     int
	UpstreamWebhookURL   string

	// Voice provider call-detail API
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	// Model inference
	LLMProvider    string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	LLMTimeout     time.Duration

	// Background jobs
	QueueBackend               string
	PipelineQueueURL           string
	WorkerCount                int
	JobMaxAttempts             int
	TranscriptFetchMaxAttempts int
	TranscriptFetchBaseDelay   time.Duration
	JobBaseDelay               time.Duration
	FailedJobsTable            string

	// Lead synthesis
	LeadNotesCap                int
	BriefInterestThreshold      int
	UltraBriefInterestThreshold int
	DefaultTimezone             string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WebhookSigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
		DedupBackend:         strings.ToLower(strings.TrimSpace(getEnv("DEDUP_BACKEND", "memory"))),
		DedupTTL:             getEnvAsDuration("DEDUP_TTL", 24*time.Hour),
		DedupMaxEntries:      getEnvAsInt("DEDUP_MAX_ENTRIES", 50000),
		RawPayloadBucket:     getEnv("RAW_PAYLOAD_BUCKET", ""),
		WebhookRateLimit:     getEnvAsInt("WEBHOOK_RATE_LIMIT", 0),
		WebhookRateBurst:     getEnvAsInt("WEBHOOK_RATE_BURST", 20),
		UpstreamWebhookURL:   getEnv("UPSTREAM_WEBHOOK_URL", ""),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.vapi.ai"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		QueueBackend:               strings.ToLower(strings.TrimSpace(getEnv("QUEUE_BACKEND", "memory"))),
		PipelineQueueURL:           getEnv("PIPELINE_QUEUE_URL", ""),
		WorkerCount:                getEnvAsInt("WORKER_COUNT", 2),
		JobMaxAttempts:             getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
		TranscriptFetchMaxAttempts: getEnvAsInt("TRANSCRIPT_FETCH_MAX_ATTEMPTS", 6),
		TranscriptFetchBaseDelay:   getEnvAsDuration("TRANSCRIPT_FETCH_BASE_DELAY", 10*time.Second),
		JobBaseDelay:               getEnvAsDuration("JOB_BASE_DELAY", 5*time.Second),
		FailedJobsTable:            getEnv("FAILED_JOBS_TABLE", ""),

		LeadNotesCap:                getEnvAsInt("LEAD_NOTES_CAP", 20),
		BriefInterestThreshold:      getEnvAsInt("BRIEF_INTEREST_THRESHOLD", 5),
		UltraBriefInterestThreshold: getEnvAsInt("ULTRA_BRIEF_INTEREST_THRESHOLD", 8),
		DefaultTimezone:             getEnv("DEFAULT_TIMEZONE", "UTC"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// ModelConfigured reports whether any model credential is present.
func (c *Config) ModelConfigured() bool {
	if c == nil {
		return false
	}
	switch c.LLMProvider {
	case "none", "off", "disabled":
		return false
	case "bedrock":
		return strings.TrimSpace(c.BedrockModelID) != ""
	case "gemini":
		return strings.TrimSpace(c.GeminiAPIKey) != ""
	default:
		return strings.TrimSpace(c.BedrockModelID) != "" || strings.TrimSpace(c.GeminiAPIKey) != ""
	}
}

// Location returns the configured default timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.DefaultTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
