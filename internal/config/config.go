package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	AdminToken    string

	// Conversation processing
	UseMemoryQueue   bool
	WorkerCount      int
	MessageQueueURL  string
	CollaboratorWait time.Duration
	SchedulingLink   string
	ClinicName       string
	ClinicStaffEmail string
	SlotHorizonWeeks int
	SlotDurationMins int
	SessionStore     string // "redis" or "postgres"
	SessionTTL       time.Duration

	// Persistence
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp Cloud API
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAPIBaseURL    string

	// NLU (Bedrock primary, Gemini fallback)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string

	// Google Calendar sync
	GoogleCredentialsFile string
	GoogleCalendarID      string
	CalendarTimezone      string

	// Staff email notifications
	EmailProvider     string // "sendgrid" or "ses"
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),

		UseMemoryQueue:   getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),
		MessageQueueURL:  getEnv("MESSAGE_QUEUE_URL", ""),
		CollaboratorWait: getEnvAsDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
		SchedulingLink:   getEnv("GOOGLE_SCHEDULES_LINK", ""),
		ClinicName:       getEnv("CLINIC_NAME", "HealthGPT"),
		ClinicStaffEmail: getEnv("CLINIC_STAFF_EMAIL", ""),
		SlotHorizonWeeks: getEnvAsInt("SLOT_HORIZON_WEEKS", 4),
		SlotDurationMins: getEnvAsInt("SLOT_DURATION_MINS", 45),
		SessionStore:     strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "redis"))),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppToken:         getEnv("WHATSAPP_API_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("VERIFY_TOKEN", ""),
		WhatsAppAPIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", "credentials.json"),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),
		CalendarTimezone:      getEnv("CALENDAR_TIMEZONE", "America/Sao_Paulo"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "HealthGPT"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
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
