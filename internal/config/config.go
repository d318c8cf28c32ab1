package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string

	// Database configuration
	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string

	// Redis configuration
	RedisAddress string

	// Session configuration
	AppPassword   string
	SessionSecret string

	// arXiv configuration
	ArxivBaseURL     string
	ArxivTimeout     time.Duration
	ArxivMaxAttempts int
	MetadataCacheTTL time.Duration

	LogLevel        string
	FrontendAddress string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("error loading .env file", "path", envPath, "error", err)
		}
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		sessionSecret = generateRandomSecret(32)
		slog.Warn("SESSION_SECRET not set, generated a random one; sessions will not survive restarts")
	}

	AppConfig = Config{
		ServerPort:       getEnv("PORT", "8080"),
		Environment:      getEnv("ENV", "development"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "postgres"),
		DBName:           getEnv("DB_NAME", "paper_tracker"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/paper_tracker.db"),
		RedisAddress:     getEnv("REDIS_ADDRESS", "localhost:6379"),
		AppPassword:      os.Getenv("APP_PASSWORD"),
		SessionSecret:    sessionSecret,
		ArxivBaseURL:     getEnv("ARXIV_BASE_URL", "http://export.arxiv.org"),
		ArxivTimeout:     getDuration("ARXIV_TIMEOUT", 10*time.Second),
		ArxivMaxAttempts: getInt("ARXIV_MAX_ATTEMPTS", 3),
		MetadataCacheTTL: getDuration("METADATA_CACHE_TTL", 24*time.Hour),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		FrontendAddress:  getEnv("FRONTEND_ADDRESS", "https://papers.example.com"),
	}

	if AppConfig.IsProduction() && AppConfig.AppPassword == "" {
		slog.Warn("APP_PASSWORD is empty in production, every request is treated as the default user")
	}
}

// IsProduction reports whether ENV is "production".
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// PostgresDSN returns DATABASE_URL, or a DSN assembled from the DB_* keys.
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		c.DBHost,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBPort,
	)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

// generateRandomSecret returns a hex encoded secret of length random bytes
func generateRandomSecret(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
