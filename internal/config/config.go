package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL      string `yaml:"database_url"`
	ServerPort       string `yaml:"server_port"`
	BaseURL          string `yaml:"base_url"`
	FrontendURL      string `yaml:"frontend_url"`
	OpenAIKey        string `yaml:"openai_api_key"`
	AIModel          string `yaml:"ai_model"`
	AIBaseURL        string `yaml:"ai_base_url"`
	EnableHSTS       bool   `yaml:"enable_hsts"`
	AuthJWKSURL      string `yaml:"auth_jwks_url"`
	AuthIssuer       string `yaml:"auth_issuer"`
	AuthAudience     string `yaml:"auth_audience"`
	RedisURL         string `yaml:"redis_url"`
	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int    `yaml:"rabbitmq_prefetch"`
	WorkerDebugMode  bool   `yaml:"worker_debug_mode"`
	ServerDebugMode  bool   `yaml:"server_debug_mode"`
	OTELEnabled      bool   `yaml:"otel_enabled"`
	OTELEndpoint     string `yaml:"otel_endpoint"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// overlaid with environment variables. Environment values win.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       "8080",
		BaseURL:          "http://localhost:8080",
		FrontendURL:      "http://localhost:3000",
		AIModel:          "gpt-4o-mini",
		RedisURL:         "redis://localhost:6379/0",
		RabbitMQPrefetch: 1,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for the extraction queue")
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.DatabaseURL, "DATABASE_URL")
	setEnv(&cfg.ServerPort, "SERVER_PORT")
	setEnv(&cfg.BaseURL, "BASE_URL")
	setEnv(&cfg.FrontendURL, "FRONTEND_URL")
	setEnv(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setEnv(&cfg.AIModel, "AI_MODEL")
	setEnv(&cfg.AIBaseURL, "AI_BASE_URL")
	setEnvBool(&cfg.EnableHSTS, "ENABLE_HSTS")
	setEnv(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	setEnv(&cfg.AuthIssuer, "AUTH_ISSUER")
	setEnv(&cfg.AuthAudience, "AUTH_AUDIENCE")
	setEnv(&cfg.RedisURL, "REDIS_URL")
	setEnv(&cfg.RabbitMQURL, "RABBITMQ_URL")
	setEnvInt(&cfg.RabbitMQPrefetch, "RABBITMQ_PREFETCH")
	setEnvBool(&cfg.WorkerDebugMode, "WORKER_DEBUG_MODE")
	setEnvBool(&cfg.ServerDebugMode, "SERVER_DEBUG_MODE")
	setEnvBool(&cfg.OTELEnabled, "OTEL_ENABLED")
	setEnv(&cfg.OTELEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setEnv(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setEnvBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value == "true" || value == "1" || value == "yes"
	}
}

func setEnvInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			*dst = intValue
		}
	}
}
