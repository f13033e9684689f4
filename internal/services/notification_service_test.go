package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"caffemacao/internal/repositories"
	"caffemacao/internal/services"
	"caffemacao/pkg/rabbitmq"
)

func TestNotificationService_SkipsRedeliveredEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	seen := repositories.NewRedisEventLog(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "notifier", time.Hour)
	core, logs := observer.New(zapcore.InfoLevel)
	service := services.NewNotificationService(seen, zap.New(core))
	ctx := context.Background()

	event := rabbitmq.OrderEvent{ID: "evt-1", Type: rabbitmq.OrderCreated, OrderID: "o-1", OrderNumber: "ORD-2026-00001", TotalAmount: dec("12.5"), Currency: "EUR"}
	require.NoError(t, service.HandleOrderEvent(ctx, event))
	require.NoError(t, service.HandleOrderEvent(ctx, event))

	confirmations := logs.FilterMessage("order confirmation due")
	require.Equal(t, 1, confirmations.Len())
	assert.Equal(t, "12.50 EUR", confirmations.All()[0].ContextMap()["total"])

	event.ID = "evt-2"
	event.Type = rabbitmq.OrderCancelled
	require.NoError(t, service.HandleOrderEvent(ctx, event))
	assert.Equal(t, 1, logs.FilterMessage("cancellation notice due").Len())
}

func TestNotificationService_WithoutEventLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	service := services.NewNotificationService(nil, zap.New(core))

	event := rabbitmq.OrderEvent{ID: "evt-1", Type: "order.refunded", OrderID: "o-1"}
	require.NoError(t, service.HandleOrderEvent(context.Background(), event))
	require.NoError(t, service.HandleOrderEvent(context.Background(), event))
	assert.Equal(t, 2, logs.FilterMessage("ignoring unknown order event").Len())
}
