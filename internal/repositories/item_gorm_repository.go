package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caffemacao/internal/models"
	"caffemacao/pkg/apperror"
)

// GORMItemRepository is a GORM implementation of ItemRepository.
type GORMItemRepository struct {
	db *gorm.DB
}

// NewGORMItemRepository creates a new instance of GORMItemRepository.
func NewGORMItemRepository(db *gorm.DB) *GORMItemRepository {
	return &GORMItemRepository{db: db}
}

// CreateItem inserts the item and then each of its variants.
func (r *GORMItemRepository) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	db := conn(ctx, r.db)
	if err := db.Omit(clause.Associations).Create(item).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("item with slug '%s' already exists", item.Slug)
		}
		return translate(err, "item")
	}
	for i := range item.Variants {
		item.Variants[i].ItemID = item.ID
		if err := r.CreateVariant(ctx, &item.Variants[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetItem retrieves an item, optionally with its variants.
func (r *GORMItemRepository) GetItem(ctx context.Context, id string, withVariants bool) (*models.Item, error) {
	var item models.Item
	db := conn(ctx, r.db)
	if withVariants {
		db = db.Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") })
	}
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err, "item")
	}
	return &item, nil
}

// ListItems returns a page of items with their variants, newest first.
func (r *GORMItemRepository) ListItems(ctx context.Context, filter ItemFilter, page Pagination) ([]models.Item, int64, error) {
	var (
		items []models.Item
		total int64
	)
	query := conn(ctx, r.db).Model(&models.Item{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(brand) LIKE ?)", like, like)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "items")
	}
	err := query.Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Order("created_at DESC").
		Limit(page.PerPage).
		Offset(page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, translate(err, "items")
	}
	return items, total, nil
}

// UpdateItem saves the item columns. Variants are managed separately.
func (r *GORMItemRepository) UpdateItem(ctx context.Context, item *models.Item) error {
	if err := conn(ctx, r.db).Omit(clause.Associations).Save(item).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("item with slug '%s' already exists", item.Slug)
		}
		return translate(err, "item")
	}
	return nil
}

// DeleteItem soft-deletes the item and all of its variants. Callers should run
// it inside a transaction.
func (r *GORMItemRepository) DeleteItem(ctx context.Context, id string) error {
	db := conn(ctx, r.db)
	res := db.Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "item")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("item with ID %s not found", id)
	}
	if err := db.Where("item_id = ?", id).Delete(&models.ItemVariant{}).Error; err != nil {
		return translate(err, "variants")
	}
	return nil
}

// UpdateRating stores the review aggregate of an item.
func (r *GORMItemRepository) UpdateRating(ctx context.Context, itemID string, average float64, count int) error {
	res := conn(ctx, r.db).Model(&models.Item{}).Where("id = ?", itemID).
		Updates(map[string]interface{}{"average_rating": average, "review_count": count})
	if res.Error != nil {
		return translate(res.Error, "item")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("item with ID %s not found", itemID)
	}
	return nil
}

// CreateVariant inserts a variant.
func (r *GORMItemRepository) CreateVariant(ctx context.Context, variant *models.ItemVariant) error {
	if variant.ID == "" {
		variant.ID = uuid.New().String()
	}
	if err := conn(ctx, r.db).Create(variant).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("variant with SKU '%s' already exists", variant.SKU)
		}
		return translate(err, "variant")
	}
	return nil
}

// GetVariant retrieves a variant by its ID.
func (r *GORMItemRepository) GetVariant(ctx context.Context, id string) (*models.ItemVariant, error) {
	var variant models.ItemVariant
	if err := conn(ctx, r.db).First(&variant, "id = ?", id).Error; err != nil {
		return nil, translate(err, "variant")
	}
	return &variant, nil
}

// GetVariantForUpdate retrieves a variant with SELECT ... FOR UPDATE.
// SQLite ignores the locking clause; its single writer gives the same effect.
func (r *GORMItemRepository) GetVariantForUpdate(ctx context.Context, id string) (*models.ItemVariant, error) {
	var variant models.ItemVariant
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "variant")
	}
	return &variant, nil
}

// UpdateVariant saves every column of the variant except the stock quantity,
// which only AdjustStock writes.
func (r *GORMItemRepository) UpdateVariant(ctx context.Context, variant *models.ItemVariant) error {
	if err := conn(ctx, r.db).Omit("stock_quantity").Save(variant).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("variant with SKU '%s' already exists", variant.SKU)
		}
		return translate(err, "variant")
	}
	return nil
}

// DeleteVariant soft-deletes a variant.
func (r *GORMItemRepository) DeleteVariant(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Delete(&models.ItemVariant{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "variant")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("variant with ID %s not found", id)
	}
	return nil
}

// AdjustStock runs UPDATE ... SET stock_quantity = stock_quantity + delta
// guarded by stock_quantity + delta >= 0.
func (r *GORMItemRepository) AdjustStock(ctx context.Context, variantID string, delta int) error {
	db := conn(ctx, r.db)
	res := db.Model(&models.ItemVariant{}).
		Where("id = ?", variantID).
		Where("stock_quantity + ? >= 0", delta).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return translate(res.Error, "variant")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Either the variant is gone or the guard rejected the update.
	variant, err := r.GetVariant(ctx, variantID)
	if err != nil {
		return err
	}
	return apperror.InsufficientStock(variant.SKU, variant.Stock.Quantity, -delta)
}
