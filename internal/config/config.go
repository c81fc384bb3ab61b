package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	DBURL         string
	RunMigrations bool
	CacheDBPath   string

	// Provider selects the generation backend: "http" or "gemini"
	Provider        string
	ProviderBaseURL string
	ProviderWSURL   string
	ProviderAPIKey  string
	GeminiAPIKey    string
	GeminiModelID   string

	GCPCredentials string
	GCSBucket      string

	PollInterval    time.Duration
	MaxPollAttempts int
	SaveDebounce    time.Duration
	RetryBase       time.Duration
	RetryAttempts   int
}

// Load reads the configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "3000"),
		DBURL:         os.Getenv("DB_URL"),
		RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),
		CacheDBPath:   getEnv("CACHE_DB_PATH", "data/cache.db"),

		Provider:        strings.ToLower(getEnv("PROVIDER", "http")),
		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:8080"),
		ProviderWSURL:   os.Getenv("PROVIDER_WS_URL"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "imagen-4.0-generate-001"),

		GCPCredentials: os.Getenv("GCP_SERVICE_ACCOUNT_CREDENTIALS"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),

		PollInterval:    getEnvAsMillis("POLL_INTERVAL_MS", 5*time.Second),
		MaxPollAttempts: getEnvAsInt("MAX_POLL_ATTEMPTS", 60),
		SaveDebounce:    getEnvAsMillis("SAVE_DEBOUNCE_MS", 2*time.Second),
		RetryBase:       getEnvAsMillis("RETRY_BASE_MS", time.Second),
		RetryAttempts:   getEnvAsInt("RETRY_ATTEMPTS", 3),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsMillis(key string, defaultVal time.Duration) time.Duration {
	if ms := getEnvAsInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
