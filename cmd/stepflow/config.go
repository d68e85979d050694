package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the command configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string // debug, info, warn, error

	// Provider selection; empty disables the LLM-backed workflows.
	Provider string
	Model    string

	// API Keys
	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string

	// Execution
	MaxConcurrency int
	Timeout        time.Duration
	PipelinesFile  string

	// Sinks is a comma-separated list of run exporters.
	Sinks []string

	SQLitePath   string
	PostgresDSN  string
	MongoURI     string
	KafkaBrokers []string
	KafkaTopic   string
	RedisURL     string
	RedisTTL     time.Duration
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool
}

var knownSinks = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"mongo":    true,
	"kafka":    true,
	"redis":    true,
	"s3":       true,
}

// LoadConfig loads configuration from environment variables.
// It loads a .env file if present (silent fail if not found).
func LoadConfig() (*Config, error) {
	godotenv.Load() // Load .env file if present

	cfg := &Config{
		Port:           getEnvOrDefault("STEPFLOW_PORT", "8000"),
		LogLevel:       getEnvOrDefault("STEPFLOW_LOG_LEVEL", "info"),
		Provider:       os.Getenv("STEPFLOW_PROVIDER"),
		Model:          os.Getenv("STEPFLOW_MODEL"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		GoogleKey:      os.Getenv("GOOGLE_API_KEY"),
		MaxConcurrency: getEnvIntOrDefault("STEPFLOW_MAX_CONCURRENCY", 4),
		Timeout:        getEnvDurationOrDefault("STEPFLOW_TIMEOUT", 5*time.Minute),
		PipelinesFile:  os.Getenv("STEPFLOW_PIPELINES"),
		Sinks:          getEnvList("STEPFLOW_SINKS"),
		SQLitePath:     getEnvOrDefault("STEPFLOW_SQLITE_PATH", "stepflow.db"),
		PostgresDSN:    os.Getenv("STEPFLOW_POSTGRES_DSN"),
		MongoURI:       os.Getenv("STEPFLOW_MONGO_URI"),
		KafkaBrokers:   getEnvList("STEPFLOW_KAFKA_BROKERS"),
		KafkaTopic:     getEnvOrDefault("STEPFLOW_KAFKA_TOPIC", "stepflow.runs"),
		RedisURL:       getEnvOrDefault("STEPFLOW_REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:       getEnvDurationOrDefault("STEPFLOW_REDIS_TTL", 0),
		S3Endpoint:     os.Getenv("STEPFLOW_S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("STEPFLOW_S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("STEPFLOW_S3_SECRET_KEY"),
		S3Bucket:       getEnvOrDefault("STEPFLOW_S3_BUCKET", "stepflow-runs"),
		S3Region:       os.Getenv("STEPFLOW_S3_REGION"),
		S3UseSSL:       getEnvBoolOrDefault("STEPFLOW_S3_USE_SSL", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.Provider {
	case "":
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic provider")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "google":
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for google provider")
		}
	default:
		return fmt.Errorf("unknown provider: %s (must be anthropic, openai, or google)", c.Provider)
	}

	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("STEPFLOW_MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}

	for _, name := range c.Sinks {
		if !knownSinks[name] {
			return fmt.Errorf("unknown sink: %s (must be sqlite, postgres, mongo, kafka, redis, or s3)", name)
		}
		switch {
		case name == "postgres" && c.PostgresDSN == "":
			return fmt.Errorf("STEPFLOW_POSTGRES_DSN is required for postgres sink")
		case name == "mongo" && c.MongoURI == "":
			return fmt.Errorf("STEPFLOW_MONGO_URI is required for mongo sink")
		case name == "kafka" && len(c.KafkaBrokers) == 0:
			return fmt.Errorf("STEPFLOW_KAFKA_BROKERS is required for kafka sink")
		case name == "s3" && c.S3Endpoint == "":
			return fmt.Errorf("STEPFLOW_S3_ENDPOINT is required for s3 sink")
		}
	}

	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case "anthropic":
		return c.AnthropicKey
	case "openai":
		return c.OpenAIKey
	case "google":
		return c.GoogleKey
	}
	return ""
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
