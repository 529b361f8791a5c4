package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort string
	LogMode    string

	// Storage
	StorageBackend string // sql, redis or memory
	DatabaseType   string // sqlite, postgres or mysql
	DatabasePath   string
	DatabaseURL    string
	RedisAddr      string
	RedisDB        int

	// Content
	ContentDir       string
	ContentURL       string
	LocalesDir       string
	AudioDir         string
	StaticDir        string
	DefaultLanguage  string
	FallbackLanguage string
	Namespaces       []string

	// Safety
	CSRFSecret    string
	ResetPINHash  string
	BadWordsURL   string
	SeedBadWords  bool
	RateLimit     int
	RateWindow    time.Duration
	DeviceMaxAge  time.Duration
	ShutdownGrace time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables, with sensible defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("PORT", "8080"),
		LogMode:    getEnv("LOG_MODE", "dev"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "sql")),
		DatabaseType:   strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:   getEnv("DB_PATH", "./leetee.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("REDIS_DB", 0),

		ContentDir:       getEnv("CONTENT_DIR", ""),
		ContentURL:       getEnv("CONTENT_URL", ""),
		LocalesDir:       getEnv("LOCALES_DIR", ""),
		AudioDir:         getEnv("AUDIO_DIR", "./static/audio"),
		StaticDir:        getEnv("STATIC_DIR", "./static"),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "en"),
		FallbackLanguage: getEnv("FALLBACK_LANGUAGE", "en"),
		Namespaces:       splitList(getEnv("I18N_NAMESPACES", "common,episode")),

		CSRFSecret:    getEnv("CSRF_SECRET", "leetee-dev-secret"),
		ResetPINHash:  getEnv("RESET_PIN_HASH", ""),
		BadWordsURL:   getEnv("BAD_WORDS_URL", ""),
		SeedBadWords:  getEnvBool("SEED_BAD_WORDS", false),
		RateLimit:     getEnvInt("RATE_LIMIT", 120),
		RateWindow:    getEnvDuration("RATE_WINDOW", time.Minute),
		DeviceMaxAge:  getEnvDuration("DEVICE_MAX_AGE", 365*24*time.Hour),
		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
