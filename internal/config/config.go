package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Gateway   GatewayConfig
	Checkout  CheckoutConfig
}

type HTTPConfig struct {
	Port           int
	MetricsPath    string
	ShutdownGrace  time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdempotencyTTL time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string
	URL             string
	AutoMigrate     bool
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	// Addr empty disables checkout rate limiting.
	Addr      string
	Password  string
	DB        int
	RateLimit int
	Window    time.Duration
}

type KafkaConfig struct {
	// Brokers empty selects the logging event bus.
	Brokers []string
	Topic   string
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

func (s ServiceConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

type GatewayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}

type CheckoutConfig struct {
	OrderNumberPrefix  string
	GuestRetention     time.Duration
	GuestPurgeInterval time.Duration
	LowStockThreshold  int
}

var defaults = map[string]any{
	"API_HTTP_PORT":        8080,
	"API_METRICS_PATH":     "/metrics",
	"API_SHUTDOWN_GRACE":   "15s",
	"API_READ_TIMEOUT":     "10s",
	"API_WRITE_TIMEOUT":    "30s",
	"IDEMPOTENCY_TTL":      "24h",
	"DATABASE_DRIVER":      "postgres",
	"AUTO_MIGRATE":         true,
	"MIGRATIONS_PATH":      "migrations",
	"DB_HOST":              "localhost",
	"DB_PORT":              "5432",
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "postgres",
	"DB_NAME":              "storefront",
	"DB_SSLMODE":           "disable",
	"DB_MAX_CONNS":         25,
	"DB_MIN_CONNS":         5,
	"DB_MAX_CONN_LIFETIME": "5m",
	"REDIS_DB":             0,
	"RATE_LIMIT_REQUESTS":  20,
	"RATE_LIMIT_WINDOW":    "1m",
	"KAFKA_TOPIC":          "storefront.orders",
	"LOG_LEVEL":            "info",
	"OTEL_ENABLE_TRACING":  true,
	"OTEL_ENABLE_METRICS":  true,
	"OTEL_SAMPLE_RATE":     1.0,
	"SERVICE_NAME":         "storefront-api",
	"SERVICE_VERSION":      "0.1.0",
	"ENVIRONMENT":          "development",
	"RAZORPAY_BASE_URL":    "https://api.razorpay.com/v1",
	"RAZORPAY_CURRENCY":    "INR",
	"RAZORPAY_TIMEOUT":     "10s",
	"ORDER_NUMBER_PREFIX":  "ORD",
	"GUEST_RETENTION":      "2160h",
	"GUEST_PURGE_INTERVAL": "24h",
	"LOW_STOCK_THRESHOLD":  5,
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           v.GetInt("API_HTTP_PORT"),
			MetricsPath:    v.GetString("API_METRICS_PATH"),
			ShutdownGrace:  v.GetDuration("API_SHUTDOWN_GRACE"),
			ReadTimeout:    v.GetDuration("API_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("API_WRITE_TIMEOUT"),
			IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DATABASE_DRIVER")),
			URL:             v.GetString("DATABASE_URL"),
			AutoMigrate:     v.GetBool("AUTO_MIGRATE"),
			MigrationsPath:  v.GetString("MIGRATIONS_PATH"),
			MaxConns:        v.GetInt32("DB_MAX_CONNS"),
			MinConns:        v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime: v.GetDuration("DB_MAX_CONN_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:      strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			RateLimit: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:    v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      v.GetString("LOG_LEVEL"),
			OTelEndpoint:  v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			EnableTracing: v.GetBool("OTEL_ENABLE_TRACING"),
			EnableMetrics: v.GetBool("OTEL_ENABLE_METRICS"),
			SampleRate:    v.GetFloat64("OTEL_SAMPLE_RATE"),
		},
		Service: ServiceConfig{
			Name:        v.GetString("SERVICE_NAME"),
			Version:     v.GetString("SERVICE_VERSION"),
			Environment: v.GetString("ENVIRONMENT"),
		},
		Gateway: GatewayConfig{
			KeyID:     strings.TrimSpace(v.GetString("RAZORPAY_KEY_ID")),
			KeySecret: strings.TrimSpace(v.GetString("RAZORPAY_KEY_SECRET")),
			BaseURL:   v.GetString("RAZORPAY_BASE_URL"),
			Currency:  strings.ToUpper(v.GetString("RAZORPAY_CURRENCY")),
			Timeout:   v.GetDuration("RAZORPAY_TIMEOUT"),
		},
		Checkout: CheckoutConfig{
			OrderNumberPrefix:  strings.ToUpper(v.GetString("ORDER_NUMBER_PREFIX")),
			GuestRetention:     v.GetDuration("GUEST_RETENTION"),
			GuestPurgeInterval: v.GetDuration("GUEST_PURGE_INTERVAL"),
			LowStockThreshold:  v.GetInt("LOW_STOCK_THRESHOLD"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildDatabaseURL(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.HTTP.Port <= 0 || c.HTTP.Port > 65535:
		return fmt.Errorf("invalid API_HTTP_PORT: %d", c.HTTP.Port)
	case c.Database.Driver != "postgres" && c.Database.Driver != "memory":
		return fmt.Errorf("invalid DATABASE_DRIVER: %q", c.Database.Driver)
	case c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1:
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE: %v", c.Telemetry.SampleRate)
	case c.Redis.Addr != "" && (c.Redis.RateLimit <= 0 || c.Redis.Window <= 0):
		return fmt.Errorf("invalid rate limit: %d per %s", c.Redis.RateLimit, c.Redis.Window)
	case c.Checkout.GuestRetention <= 0:
		return fmt.Errorf("invalid GUEST_RETENTION: %s", c.Checkout.GuestRetention)
	case c.Checkout.GuestPurgeInterval <= 0:
		return fmt.Errorf("invalid GUEST_PURGE_INTERVAL: %s", c.Checkout.GuestPurgeInterval)
	}
	if _, err := url.Parse(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid RAZORPAY_BASE_URL: %w", err)
	}
	return nil
}

func buildDatabaseURL(v *viper.Viper) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("DB_USER"), v.GetString("DB_PASSWORD")),
		Host:     v.GetString("DB_HOST") + ":" + v.GetString("DB_PORT"),
		Path:     "/" + v.GetString("DB_NAME"),
		RawQuery: "sslmode=" + url.QueryEscape(v.GetString("DB_SSLMODE")),
	}
	return u.String()
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
