package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfig is matched by every MissingError.
var ErrMissingConfig = errors.New("config: required setting missing")

// MissingError names the environment key that was required but empty.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("config: %s is required", e.Key)
}

// Is lets errors.Is(err, ErrMissingConfig) match any MissingError.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingConfig
}

// CRMConfig configures the GoHighLevel client.
type CRMConfig struct {
	APIKey         string
	LocationID     string
	BaseURL        string
	WebhookURL     string
	FormWebhookURL string
	PipelineID     string
	PipelineStage  string
	Timeout        time.Duration
	Workflows      WorkflowConfig
}

// WorkflowConfig maps qualification tiers to CRM workflow ids.
type WorkflowConfig struct {
	Hot  string
	Warm string
	Cold string
}

// Validate reports the first required CRM setting that is missing.
func (c CRMConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &MissingError{Key: "GHL_API_KEY"}
	}
	if strings.TrimSpace(c.LocationID) == "" {
		return &MissingError{Key: "GHL_LOCATION_ID"}
	}
	return nil
}

// VoiceConfig configures the VAPI client.
type VoiceConfig struct {
	PublicKey     string
	PrivateKey    string
	AssistantID   string
	PhoneNumberID string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Validate reports the first required voice setting that is missing.
func (c VoiceConfig) Validate() error {
	if strings.TrimSpace(c.PrivateKey) == "" {
		return &MissingError{Key: "VAPI_PRIVATE_KEY"}
	}
	if strings.TrimSpace(c.AssistantID) == "" {
		return &MissingError{Key: "VAPI_ASSISTANT_ID"}
	}
	return nil
}

// FollowUpConfig configures the delayed voice follow-up queue.
type FollowUpConfig struct {
	Delay          time.Duration
	MaxAttempts    int
	QueueURL       string
	JobsTable      string
	JobStore       string
	UseMemoryQueue bool
	WorkerCount    int
}

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	RequestTimeout     time.Duration

	CRM      CRMConfig
	Voice    VoiceConfig
	FollowUp FollowUpConfig

	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	IdempotencyTTL time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Ops alert email
	AlertEmailTo      string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// LoadDotEnv reads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env file: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 25*time.Second),

		CRM: CRMConfig{
			APIKey:         getEnv("GHL_API_KEY", ""),
			LocationID:     getEnv("GHL_LOCATION_ID", ""),
			BaseURL:        getEnv("GHL_BASE_URL", "https://rest.gohighlevel.com/v1"),
			WebhookURL:     getEnv("GHL_WEBHOOK_URL", ""),
			FormWebhookURL: getEnv("GHL_FORM_WEBHOOK_URL", ""),
			PipelineID:     getEnv("GHL_PIPELINE_ID", ""),
			PipelineStage:  getEnv("GHL_PIPELINE_STAGE_ID", ""),
			Timeout:        getEnvAsDuration("CRM_TIMEOUT", 10*time.Second),
			Workflows: WorkflowConfig{
				Hot:  getEnv("GHL_WORKFLOW_HOT", "hot-lead-workflow-id"),
				Warm: getEnv("GHL_WORKFLOW_WARM", "warm-lead-workflow-id"),
				Cold: getEnv("GHL_WORKFLOW_COLD", "cold-lead-workflow-id"),
			},
		},

		Voice: VoiceConfig{
			PublicKey:     getEnv("VAPI_PUBLIC_KEY", ""),
			PrivateKey:    getEnv("VAPI_PRIVATE_KEY", ""),
			AssistantID:   getEnv("VAPI_ASSISTANT_ID", ""),
			PhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
			BaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
			WebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),
			Timeout:       getEnvAsDuration("VOICE_TIMEOUT", 10*time.Second),
		},

		FollowUp: FollowUpConfig{
			Delay:          getEnvAsDuration("FOLLOWUP_DELAY", 5*time.Minute),
			MaxAttempts:    getEnvAsInt("FOLLOWUP_MAX_ATTEMPTS", 1),
			QueueURL:       getEnv("FOLLOWUP_QUEUE_URL", ""),
			JobsTable:      getEnv("FOLLOWUP_JOBS_TABLE", "followup_jobs"),
			JobStore:       strings.ToLower(strings.TrimSpace(getEnv("FOLLOWUP_JOB_STORE", "dynamodb"))),
			UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
			WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		},

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AlertEmailTo:      getEnv("ALERT_EMAIL_TO", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Transcenda"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// IsProduction reports whether internal error details must be hidden.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
