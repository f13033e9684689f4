package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds the process configuration.
type Config struct {
	AppPort string

	DatabaseDriver string // postgres | sqlite
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQQueue    string

	JWTSecret string
	JWTTTL    time.Duration

	LogLevel  string
	LogFormat string

	StoreCurrency       string
	DefaultShippingCost decimal.Decimal
	PlaceholderImageURL string

	AdminEmail    string
	AdminPassword string
	SeedCatalog   bool
}

// devJWTSecret signs tokens when JWT_SECRET is unset. It is only accepted
// with the sqlite driver.
const devJWTSecret = "change-me"

// Load reads configuration from an optional config.yaml and the environment.
// Environment variables always win over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=caffemacao port=5432 sslmode=disable")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "orders")
	v.SetDefault("RABBITMQ_QUEUE", "order_events")
	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STORE_CURRENCY", "EUR")
	v.SetDefault("DEFAULT_SHIPPING_COST", "0")
	v.SetDefault("PLACEHOLDER_IMAGE_URL", "https://res.cloudinary.com/caffemacao/image/upload/v1/placeholder.png")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("SEED_CATALOG", false)
}

func fromViper(v *viper.Viper) (*Config, error) {
	shipping, err := decimal.NewFromString(v.GetString("DEFAULT_SHIPPING_COST"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SHIPPING_COST: %w", err)
	}

	cfg := &Config{
		AppPort:             v.GetString("APP_PORT"),
		DatabaseDriver:      strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:         v.GetString("DATABASE_DSN"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:    v.GetString("RABBITMQ_EXCHANGE"),
		RabbitMQQueue:       v.GetString("RABBITMQ_QUEUE"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTTTL:              v.GetDuration("JWT_TTL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
		StoreCurrency:       strings.ToUpper(v.GetString("STORE_CURRENCY")),
		DefaultShippingCost: shipping,
		PlaceholderImageURL: v.GetString("PLACEHOLDER_IMAGE_URL"),
		AdminEmail:          v.GetString("ADMIN_EMAIL"),
		AdminPassword:       v.GetString("ADMIN_PASSWORD"),
		SeedCatalog:         v.GetBool("SEED_CATALOG"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.DatabaseDriver == "postgres" && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set explicitly when DATABASE_DRIVER is postgres")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if len(c.StoreCurrency) != 3 {
		return fmt.Errorf("STORE_CURRENCY must be an ISO 4217 code, got %q", c.StoreCurrency)
	}
	if c.DefaultShippingCost.IsNegative() {
		return fmt.Errorf("DEFAULT_SHIPPING_COST must not be negative")
	}
	return nil
}
