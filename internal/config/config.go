package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"invoice-engine/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Gateway modes.
const (
	GatewayModeLive = "live"
	GatewayModeTest = "test"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Payments PaymentsConfig `yaml:"payments"`
	Invoice  InvoiceConfig  `yaml:"invoice"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"` // comma-separated
	JWTSecret      string `yaml:"jwt_secret"`
}

type GatewayConfig struct {
	Mode      string        `yaml:"mode"` // live or test
	BaseURL   string        `yaml:"base_url"`
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PaymentsConfig struct {
	AttemptTTL      time.Duration `yaml:"attempt_ttl"`      // created/processing attempts older than this are cancelled
	JanitorInterval time.Duration `yaml:"janitor_interval"` // how often the sweep runs inside the server
}

type InvoiceConfig struct {
	NumberPrefix    string `yaml:"number_prefix"`
	DefaultDueDays  int    `yaml:"default_due_days"`
	DefaultCurrency string `yaml:"default_currency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Gateway: GatewayConfig{
			Mode:    GatewayModeTest,
			Timeout: 10 * time.Second,
		},
		Payments: PaymentsConfig{
			AttemptTTL:      15 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Invoice: InvoiceConfig{
			NumberPrefix:    "INV",
			DefaultDueDays:  30,
			DefaultCurrency: "INR",
		},
		Log: LogConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// and finally environment variables (a .env file in the working directory is
// loaded first if present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("INVOICE_ENGINE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnv("ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Gateway.Mode = getEnv("GATEWAY_MODE", c.Gateway.Mode)
	c.Gateway.BaseURL = getEnv("GATEWAY_BASE_URL", c.Gateway.BaseURL)
	c.Gateway.KeyID = getEnv("GATEWAY_KEY_ID", c.Gateway.KeyID)
	c.Gateway.KeySecret = getEnv("GATEWAY_KEY_SECRET", c.Gateway.KeySecret)
	c.Invoice.NumberPrefix = getEnv("INVOICE_NUMBER_PREFIX", c.Invoice.NumberPrefix)
	c.Invoice.DefaultCurrency = getEnv("DEFAULT_CURRENCY", c.Invoice.DefaultCurrency)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	var err error
	if c.Gateway.Timeout, err = getDuration("GATEWAY_TIMEOUT", c.Gateway.Timeout); err != nil {
		return err
	}
	if c.Payments.AttemptTTL, err = getDuration("PAYMENT_ATTEMPT_TTL", c.Payments.AttemptTTL); err != nil {
		return err
	}
	if c.Payments.JanitorInterval, err = getDuration("JANITOR_INTERVAL", c.Payments.JanitorInterval); err != nil {
		return err
	}
	if v := os.Getenv("DEFAULT_DUE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_DUE_DAYS %q: %w", v, err)
		}
		c.Invoice.DefaultDueDays = days
	}
	return nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case GatewayModeTest:
	case GatewayModeLive:
		if c.Gateway.BaseURL == "" {
			return errors.New("GATEWAY_BASE_URL is required in live mode")
		}
		if c.Gateway.KeyID == "" {
			return errors.New("GATEWAY_KEY_ID is required in live mode")
		}
	default:
		return fmt.Errorf("unknown GATEWAY_MODE %q (want live or test)", c.Gateway.Mode)
	}
	// Callbacks are public routes; the secret is their only credential.
	if c.Gateway.KeySecret == "" {
		return errors.New("GATEWAY_KEY_SECRET is required")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if c.Payments.AttemptTTL <= 0 {
		return errors.New("PAYMENT_ATTEMPT_TTL must be positive")
	}
	if c.Payments.JanitorInterval <= 0 {
		return errors.New("JANITOR_INTERVAL must be positive")
	}
	if c.Invoice.DefaultDueDays < 0 {
		return errors.New("DEFAULT_DUE_DAYS cannot be negative")
	}
	return nil
}

// LoggerConfig returns the logger configuration derived from c.
func (c *Config) LoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Output: c.Log.Output,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
