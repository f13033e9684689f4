package repositories

import (
	"context"

	"caffemacao/internal/models"
)

// ItemFilter narrows catalog listings.
type ItemFilter struct {
	Search     string
	ActiveOnly bool
}

// ItemRepository defines the interface for catalog data access: items and
// their variants.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string, withVariants bool) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter, page Pagination) ([]models.Item, int64, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id string) error
	UpdateRating(ctx context.Context, itemID string, average float64, count int) error

	CreateVariant(ctx context.Context, variant *models.ItemVariant) error
	GetVariant(ctx context.Context, id string) (*models.ItemVariant, error)
	// GetVariantForUpdate locks the variant row until the surrounding
	// transaction ends.
	GetVariantForUpdate(ctx context.Context, id string) (*models.ItemVariant, error)
	UpdateVariant(ctx context.Context, variant *models.ItemVariant) error
	DeleteVariant(ctx context.Context, id string) error
	// AdjustStock adds delta to the variant stock, refusing to go below zero.
	AdjustStock(ctx context.Context, variantID string, delta int) error
}
