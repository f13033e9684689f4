package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("JWT_SECRET", "prod-secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "EUR", cfg.StoreCurrency)
	assert.True(t, cfg.DefaultShippingCost.IsZero())
	assert.Empty(t, cfg.RedisAddr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DEFAULT_SHIPPING_COST", "4.90")
	t.Setenv("STORE_CURRENCY", "usd")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "4.9", cfg.DefaultShippingCost.String())
	assert.Equal(t, "USD", cfg.StoreCurrency)
}

func TestValidation(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DATABASE_DRIVER", "mysql")
	_, err := fromViper(v)
	assert.ErrorContains(t, err, "unsupported DATABASE_DRIVER")

	v = viper.New()
	setDefaults(v)
	v.Set("JWT_SECRET", "prod-secret")
	v.Set("DEFAULT_SHIPPING_COST", "-1")
	_, err = fromViper(v)
	assert.ErrorContains(t, err, "must not be negative")

	v = viper.New()
	setDefaults(v)
	v.Set("DEFAULT_SHIPPING_COST", "free")
	_, err = fromViper(v)
	assert.ErrorContains(t, err, "invalid DEFAULT_SHIPPING_COST")
}

func TestJWTSecretRequiredForPostgres(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	_, err := fromViper(v)
	assert.ErrorContains(t, err, "JWT_SECRET must be set explicitly")

	v = viper.New()
	setDefaults(v)
	v.Set("JWT_SECRET", "prod-secret")
	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "prod-secret", cfg.JWTSecret)

	v = viper.New()
	setDefaults(v)
	v.Set("DATABASE_DRIVER", "sqlite")
	cfg, err = fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
}
