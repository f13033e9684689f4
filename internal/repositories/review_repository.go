package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"caffemacao/internal/models"
	"caffemacao/pkg/apperror"
)

// ReviewStats is the rating aggregate of an item.
type ReviewStats struct {
	Average float64
	Count   int
}

// ReviewRepository defines the interface for review data access.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	ListByItem(ctx context.Context, itemID string) ([]models.Review, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, itemID string) (ReviewStats, error)
}

// GORMReviewRepository is a GORM implementation of ReviewRepository.
type GORMReviewRepository struct {
	db *gorm.DB
}

// NewGORMReviewRepository creates a new instance of GORMReviewRepository.
func NewGORMReviewRepository(db *gorm.DB) *GORMReviewRepository {
	return &GORMReviewRepository{db: db}
}

func (r *GORMReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if err := conn(ctx, r.db).Create(review).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("you have already reviewed this item")
		}
		return translate(err, "review")
	}
	return nil
}

func (r *GORMReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := conn(ctx, r.db).First(&review, "id = ?", id).Error; err != nil {
		return nil, translate(err, "review")
	}
	return &review, nil
}

func (r *GORMReviewRepository) ListByItem(ctx context.Context, itemID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := conn(ctx, r.db).Where("item_id = ?", itemID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, translate(err, "reviews")
	}
	return reviews, nil
}

// Delete removes the review row so the author may review the item again.
func (r *GORMReviewRepository) Delete(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Unscoped().Delete(&models.Review{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "review")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("review with ID %s not found", id)
	}
	return nil
}

func (r *GORMReviewRepository) Stats(ctx context.Context, itemID string) (ReviewStats, error) {
	var row struct {
		Average float64
		Count   int
	}
	err := conn(ctx, r.db).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("item_id = ?", itemID).
		Scan(&row).Error
	if err != nil {
		return ReviewStats{}, translate(err, "reviews")
	}
	return ReviewStats{Average: row.Average, Count: row.Count}, nil
}
