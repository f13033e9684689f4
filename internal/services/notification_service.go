package services

import (
	"context"

	"go.uber.org/zap"

	"caffemacao/pkg/rabbitmq"
)

// EventLog records handled event ids so redelivered events are skipped.
type EventLog interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

// NotificationService consumes order events. Outbound email is out of scope;
// events are logged where a mailer would be invoked.
type NotificationService struct {
	seen EventLog // nil disables deduplication
	log  *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(seen EventLog, log *zap.Logger) *NotificationService {
	return &NotificationService{seen: seen, log: log}
}

// HandleOrderEvent processes one delivered order event.
func (s *NotificationService) HandleOrderEvent(ctx context.Context, event rabbitmq.OrderEvent) error {
	if s.seen != nil && event.ID != "" {
		first, err := s.seen.FirstSeen(ctx, event.ID)
		if err != nil {
			return err
		}
		if !first {
			s.log.Debug("skipping duplicate order event", zap.String("event_id", event.ID))
			return nil
		}
	}

	fields := []zap.Field{
		zap.String("event", event.Type),
		zap.String("order_number", event.OrderNumber),
		zap.String("user_id", event.UserID),
		zap.String("order_status", event.OrderStatus),
		zap.String("payment_status", event.PaymentStatus),
	}
	switch event.Type {
	case rabbitmq.OrderCreated:
		s.log.Info("order confirmation due", append(fields, zap.String("total", event.TotalAmount.StringFixed(2)+" "+event.Currency))...)
	case rabbitmq.OrderCancelled:
		s.log.Info("cancellation notice due", fields...)
	case rabbitmq.OrderUpdated:
		s.log.Info("order status notice due", fields...)
	default:
		s.log.Warn("ignoring unknown order event", fields...)
	}
	return nil
}
