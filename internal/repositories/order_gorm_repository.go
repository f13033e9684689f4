package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caffemacao/internal/models"
	"caffemacao/pkg/apperror"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db, now: time.Now}
}

func withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Items.Item").
		Preload("Items.Variant")
}

// Create inserts the order and its lines in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if order.OrderNumber == "" {
			latest, err := latestOrderNumber(tx)
			if err != nil {
				return err
			}
			order.OrderNumber = models.NextOrderNumber(latest, r.now())
		}
		order.Revision = 1
		order.RecalculateTotals()
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		return insertLines(tx, order)
	})
	if err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("order %s conflicts with an existing order", order.OrderNumber)
		}
		return translate(err, "order")
	}
	return nil
}

// latestOrderNumber reads the number of the most recently created order,
// soft-deleted ones included so numbers are never reused.
func latestOrderNumber(tx *gorm.DB) (string, error) {
	var latest models.Order
	err := tx.Unscoped().Select("order_number").Order("created_at DESC").Order("order_number DESC").
		Limit(1).Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return latest.OrderNumber, nil
}

func insertLines(tx *gorm.DB, order *models.Order) error {
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	return tx.Omit(clause.Associations).Create(&order.Items).Error
}

// FindCart returns the Pending order of userID.
func (r *GORMOrderRepository) FindCart(ctx context.Context, userID string) (*models.Order, error) {
	var order models.Order
	err := withLines(conn(ctx, r.db)).
		Where("cart_owner = ? AND order_status = ?", userID, models.OrderStatusPending).
		First(&order).Error
	if err != nil {
		return nil, translate(err, "cart")
	}
	return &order, nil
}

// GetByID retrieves an order with its lines.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := withLines(conn(ctx, r.db)).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order")
	}
	return &order, nil
}

// GetByIDForUser retrieves an order placed by userID.
func (r *GORMOrderRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	var order models.Order
	err := withLines(conn(ctx, r.db)).First(&order, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, translate(err, "order")
	}
	return &order, nil
}

// List returns matching orders, newest first.
func (r *GORMOrderRepository) List(ctx context.Context, q OrderQuery, page *Pagination) ([]models.Order, int64, error) {
	var (
		orders []models.Order
		total  int64
	)
	query := conn(ctx, r.db).Model(&models.Order{})
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.ExcludeCarts {
		query = query.Where("order_status <> ?", models.OrderStatusPending)
	}
	if q.OrderNumber != "" {
		query = query.Where("order_number = ?", q.OrderNumber)
	}
	if q.PaymentStatus != "" {
		query = query.Where("payment_status = ?", q.PaymentStatus)
	}
	if q.OrderStatus != "" {
		query = query.Where("order_status = ?", q.OrderStatus)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "orders")
	}
	find := withLines(query).Order("created_at DESC").Order("order_number DESC")
	if page != nil {
		find = find.Limit(page.PerPage).Offset(page.Offset())
	}
	if err := find.Find(&orders).Error; err != nil {
		return nil, 0, translate(err, "orders")
	}
	return orders, total, nil
}

// Update saves the order guarded by its revision and replaces its lines.
func (r *GORMOrderRepository) Update(ctx context.Context, order *models.Order) error {
	expected := order.Revision
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND revision = ?", order.ID, expected).
			Update("revision", expected+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperror.NotFound("order with ID %s not found", order.ID)
			}
			return apperror.Conflict("order %s was modified concurrently, please retry", order.OrderNumber)
		}

		order.Revision = expected + 1
		order.RecalculateTotals()
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return insertLines(tx, order)
	})
	if err != nil {
		order.Revision = expected
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		if isDuplicate(err) {
			return apperror.Conflict("user already has an open cart")
		}
		return translate(err, "order")
	}
	return nil
}
