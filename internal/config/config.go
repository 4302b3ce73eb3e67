package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the template worker
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"template-1"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"template.work"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"template-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"template.rendered"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`

	// Template engine configuration
	TemplateDir          string `env:"TEMPLATE_DIR"`
	TemplateSuffix       string `env:"TEMPLATE_SUFFIX" envDefault:".hbs"`
	TemplateManifest     string `env:"TEMPLATE_MANIFEST"`
	TemplateRedisPrefix  string `env:"TEMPLATE_REDIS_PREFIX" envDefault:"template:source:"`
	TemplateStrict       bool   `env:"TEMPLATE_STRICT" envDefault:"false"`
	TemplateStringParams bool   `env:"TEMPLATE_STRING_PARAMS" envDefault:"false"`
	TemplateMaxDepth     int    `env:"TEMPLATE_MAX_DEPTH" envDefault:"256"`
	TemplateOpenDelim    string `env:"TEMPLATE_OPEN_DELIM" envDefault:"{{"`
	TemplateCloseDelim   string `env:"TEMPLATE_CLOSE_DELIM" envDefault:"}}"`
	TemplateEscape       string `env:"TEMPLATE_ESCAPE" envDefault:"none"`

	// LLM configuration, used when a request asks for a completion
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	LLMModel    string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// CEL configuration
	CELEnabled bool `env:"CEL_ENABLED" envDefault:"true"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8083"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.TemplateMaxDepth <= 0 {
		return fmt.Errorf("TEMPLATE_MAX_DEPTH must be positive")
	}

	if c.TemplateOpenDelim == "" || c.TemplateCloseDelim == "" {
		return fmt.Errorf("TEMPLATE_OPEN_DELIM and TEMPLATE_CLOSE_DELIM must not be empty")
	}

	if c.TemplateEscape != "html" && c.TemplateEscape != "none" {
		return fmt.Errorf("TEMPLATE_ESCAPE must be one of: html, none")
	}

	// LLM_API_KEY is optional - only required when a request asks for a completion

	if c.LLMProvider == "" {
		return fmt.Errorf("LLM_PROVIDER is required")
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be non-negative")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// HTMLEscape reports whether rendered values are HTML-escaped
func (c *Config) HTMLEscape() bool {
	return c.TemplateEscape == "html"
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"TemplateDir=%s, TemplateManifest=%s, TemplateStrict=%v, TemplateMaxDepth=%d, "+
			"LLMProvider=%s, LLMModel=%s, CELEnabled=%v, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.TemplateDir,
		c.TemplateManifest,
		c.TemplateStrict,
		c.TemplateMaxDepth,
		c.LLMProvider,
		c.LLMModel,
		c.CELEnabled,
		c.HealthPort,
		c.LogLevel,
	)
}
