package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Tavily (research search)
	TavilyAPIKey  string
	TavilyBaseURL string

	// OpenAI (script + character images)
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIScriptModel string
	OpenAIImageModel  string

	// ElevenLabs (narration audio)
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string

	// Render service (video assembly)
	RenderAPIKey  string
	RenderBaseURL string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Redis (stage locks + recovery queue broker)
	RedisAddr         string
	RedisPassword     string
	WorkerConcurrency int

	// Stripe
	StripeWebhookSecret string

	// Pipeline
	StageMaxRetries    int
	RecoveryRetryDelay time.Duration
	RecoveryMaxRetries int
	StageTimeout       time.Duration
	UseMockProviders   bool

	// Billing
	FreeTierProjectLimit int

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AllowedOrigins string
}

func Load() (*Config, error) {
	cfg := &Config{
		TavilyAPIKey:  getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL: getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIScriptModel: getEnv("OPENAI_SCRIPT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:  getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),

		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),

		RenderAPIKey:  getEnv("RENDER_API_KEY", ""),
		RenderBaseURL: getEnv("RENDER_BASE_URL", ""),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "project-media"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StageMaxRetries:    getEnvInt("STAGE_MAX_RETRIES", 3),
		RecoveryRetryDelay: getEnvDuration("RECOVERY_RETRY_DELAY", 5*time.Minute),
		RecoveryMaxRetries: getEnvInt("RECOVERY_MAX_RETRIES", 3),
		StageTimeout:       getEnvDuration("STAGE_TIMEOUT", 10*time.Minute),
		UseMockProviders:   getEnvBool("USE_MOCK_PROVIDERS", false),

		FreeTierProjectLimit: getEnvInt("FREE_TIER_PROJECT_LIMIT", 3),

		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if !c.UseMockProviders {
		if c.TavilyAPIKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required (or set USE_MOCK_PROVIDERS=true)")
		}
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required (or set USE_MOCK_PROVIDERS=true)")
		}
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required (or set USE_MOCK_PROVIDERS=true)")
		}
		if c.RenderBaseURL == "" {
			return fmt.Errorf("RENDER_BASE_URL is required (or set USE_MOCK_PROVIDERS=true)")
		}
	}
	if c.StageMaxRetries < 1 {
		return fmt.Errorf("STAGE_MAX_RETRIES must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
