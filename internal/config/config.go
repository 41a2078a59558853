package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase storage (audio artifacts)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (sample text generation)
	OpenAIKey string

	// Gemini (objective metric estimation on synthesized audio)
	GeminiKey      string
	EvaluatorModel string

	// ElevenLabs TTS provider
	ElevenLabsKey string

	// Cartesia TTS provider
	CartesiaKey string
	CartesiaURL string

	// MockTTSEnabled registers a deterministic local provider so the
	// pipeline can run without any provider API keys.
	MockTTSEnabled bool

	// Worker
	MaxConcurrentJobs int
}

// ClientConfig holds settings for the arena CLI. Everything here is a flag
// default, so env vars configure the common case and flags override per run.
type ClientConfig struct {
	BackendURL      string
	APIKey          string
	PollInterval    time.Duration // cadence while a comparison is in progress
	MaxPollDuration time.Duration // 0 = poll until terminal, no client-side timeout
}

// LoadClient reads the CLI configuration. Nothing is required: the defaults
// point at a local backend with no auth.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		BackendURL:      getEnv("ARENA_BACKEND_URL", "http://localhost:8080"),
		APIKey:          getEnv("ARENA_API_KEY", ""),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 3*time.Second),
		MaxPollDuration: getEnvDuration("MAX_POLL_DURATION", 0),
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "voice-arena-samples"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		EvaluatorModel:        getEnv("EVALUATOR_MODEL", "gemini-2.5-flash"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		CartesiaKey:           getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:           getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		MockTTSEnabled:        getEnvBool("MOCK_TTS_ENABLED", false),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// At least one TTS provider must be configured
	if cfg.ElevenLabsKey == "" && cfg.CartesiaKey == "" && !cfg.MockTTSEnabled {
		return nil, fmt.Errorf("either ELEVENLABS_API_KEY, CARTESIA_API_KEY, or MOCK_TTS_ENABLED is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
