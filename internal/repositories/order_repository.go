package repositories

import (
	"context"

	"caffemacao/internal/models"
)

// OrderQuery selects orders for listings. Empty fields do not filter.
type OrderQuery struct {
	UserID        string
	ExcludeCarts  bool
	OrderNumber   string
	PaymentStatus string
	OrderStatus   string
}

// OrderRepository defines the interface for order and cart data access.
type OrderRepository interface {
	// Create inserts a new order with its lines, assigning the next order
	// number when none is set. A second cart for the same user fails with a
	// Conflict error.
	Create(ctx context.Context, order *models.Order) error
	// FindCart returns the Pending order of userID.
	FindCart(ctx context.Context, userID string) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetByIDForUser is GetByID restricted to orders placed by userID.
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	// List returns matching orders, newest first. A nil page returns all rows.
	List(ctx context.Context, query OrderQuery, page *Pagination) ([]models.Order, int64, error)
	// Update saves the order and its lines if order.Revision still matches the
	// stored revision, then increments it. A stale revision fails with Conflict.
	Update(ctx context.Context, order *models.Order) error
}
