package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"caffemacao/internal/models"
	"caffemacao/pkg/apperror"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database. Emails are stored lower-cased.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(user.Email)
	if err := conn(ctx, r.db).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("email '%s' already registered", user.Email)
		}
		return translate(err, "user")
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// List returns a page of users, newest first, and the total count.
func (r *GORMUserRepository) List(ctx context.Context, page Pagination) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	query := conn(ctx, r.db).Model(&models.User{}).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "users")
	}
	if err := query.Order("created_at DESC").Limit(page.PerPage).Offset(page.Offset()).Find(&users).Error; err != nil {
		return nil, 0, translate(err, "users")
	}
	return users, total, nil
}

// Update saves every column of user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := conn(ctx, r.db).Save(user)
	if res.Error != nil {
		return translate(res.Error, "user")
	}
	return nil
}

// Delete soft-deletes a user by their ID.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("user with ID %s not found", id)
	}
	return nil
}
