package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caffemacao/internal/config"
	"caffemacao/internal/database"
	"caffemacao/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:             ":0",
		DatabaseDriver:      "sqlite",
		JWTSecret:           "test_jwt_secret",
		JWTTTL:              time.Hour,
		RabbitMQQueue:       "order_events",
		StoreCurrency:       "EUR",
		DefaultShippingCost: decimal.RequireFromString("4.90"),
		PlaceholderImageURL: "https://img.example.com/placeholder.png",
	}
}

func newTestApp(t *testing.T) (*fiber.App, *appServices) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	cfg := testConfig()
	svc := newServices(cfg, zap.NewNop(), db, nil, nil)
	return newApp(cfg, zap.NewNop(), db, nil, svc), svc
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, "disabled", body["redis"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"route not found"}`, string(raw))
}

func TestSeedCatalogRunsOnce(t *testing.T) {
	_, svc := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, seedCatalog(ctx, svc.catalog, zap.NewNop()))
	require.NoError(t, seedCatalog(ctx, svc.catalog, zap.NewNop()))

	list, err := svc.catalog.ListItems(ctx, services.ItemQuery{IncludeInactive: true})
	require.NoError(t, err)
	assert.EqualValues(t, len(starterCatalog), list.Total)
}
