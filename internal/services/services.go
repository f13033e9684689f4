package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/rabbitmq"
)

const maxPerPage = 25

// Caller identifies the authenticated user a request is made on behalf of.
type Caller struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// OrderEventPublisher delivers order lifecycle events to the message broker.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event rabbitmq.OrderEvent) error
}

// pagination clamps a page request: page >= 1, 1 <= perPage <= 25, and
// perPage falls back to def when unset.
func pagination(page, perPage, def int) repositories.Pagination {
	if page < 1 {
		page = 1
	}
	if perPage == 0 {
		perPage = def
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return repositories.Pagination{Page: page, PerPage: perPage}
}

// publishOrderEvent sends an event for order. Delivery failures are logged and
// never fail the operation that produced the event.
func publishOrderEvent(ctx context.Context, publisher OrderEventPublisher, log *zap.Logger, eventType string, order *models.Order) {
	if publisher == nil {
		log.Debug("event publishing disabled", zap.String("event", eventType), zap.String("order_id", order.ID))
		return
	}
	event := rabbitmq.OrderEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		OccurredAt:    time.Now().UTC(),
	}
	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		log.Warn("failed to publish order event",
			zap.String("event", eventType), zap.String("order_id", order.ID), zap.Error(err))
	}
}
