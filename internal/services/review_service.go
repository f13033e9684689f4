package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
)

// ReviewService handles item reviews and keeps the item rating in sync.
type ReviewService struct {
	reviews repositories.ReviewRepository
	items   repositories.ItemRepository
	tx      Transactor
	log     *zap.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(reviews repositories.ReviewRepository, items repositories.ItemRepository, tx Transactor, log *zap.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, items: items, tx: tx, log: log}
}

// ListReviews returns the reviews of an item, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, itemID string) ([]models.Review, error) {
	if _, err := s.items.GetItem(ctx, itemID, false); err != nil {
		return nil, err
	}
	return s.reviews.ListByItem(ctx, itemID)
}

// CreateReview records the caller's review of an item. A user reviews an item
// at most once.
func (s *ReviewService) CreateReview(ctx context.Context, userID, itemID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.Validation("rating must be between 1 and 5")
	}
	review := &models.Review{
		ItemID:  itemID,
		UserID:  userID,
		Rating:  rating,
		Comment: strings.TrimSpace(comment),
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.items.GetItem(ctx, itemID, false); err != nil {
			return err
		}
		if err := s.reviews.Create(ctx, review); err != nil {
			return err
		}
		return s.refreshRating(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes a review. Only its author or an admin may do so.
func (s *ReviewService) DeleteReview(ctx context.Context, caller Caller, reviewID string) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		review, err := s.reviews.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.UserID != caller.UserID && !caller.IsAdmin() {
			return apperror.Forbidden("you can only delete your own reviews")
		}
		if err := s.reviews.Delete(ctx, reviewID); err != nil {
			return err
		}
		return s.refreshRating(ctx, review.ItemID)
	})
}

func (s *ReviewService) refreshRating(ctx context.Context, itemID string) error {
	stats, err := s.reviews.Stats(ctx, itemID)
	if err != nil {
		return err
	}
	return s.items.UpdateRating(ctx, itemID, stats.Average, stats.Count)
}
