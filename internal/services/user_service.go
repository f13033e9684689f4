package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
)

const defaultUsersPerPage = 20

// ProfileInput carries the profile fields a user may change. Nil fields are
// left untouched.
type ProfileInput struct {
	Name            *string
	Phone           *string
	ShippingAddress *models.Address
}

// UserList is a page of users.
type UserList struct {
	Users   []models.User
	Total   int64
	Page    int
	PerPage int
}

// UserService handles profile and back-office user management.
type UserService struct {
	repo repositories.UserRepository
	log  *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository, log *zap.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

// GetProfile returns the caller's own account.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile applies in to the caller's account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("name must not be empty")
		}
		user.Name = name
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.ShippingAddress != nil {
		user.ShippingAddress = *in.ShippingAddress
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of accounts, newest first.
func (s *UserService) ListUsers(ctx context.Context, page, perPage int) (*UserList, error) {
	p := pagination(page, perPage, defaultUsersPerPage)
	users, total, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &UserList{Users: users, Total: total, Page: p.Page, PerPage: p.PerPage}, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateRole changes the role of a user. Admins cannot demote themselves so
// the back-office always keeps at least the acting admin.
func (s *UserService) UpdateRole(ctx context.Context, caller Caller, id string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperror.Validation("invalid role '%s'", role)
	}
	if caller.UserID == id && role != models.RoleAdmin {
		return nil, apperror.Validation("you cannot remove your own admin role")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user role changed", zap.String("user_id", id), zap.String("role", string(role)), zap.String("by", caller.UserID))
	return user, nil
}

// DeleteUser soft-deletes an account other than the caller's.
func (s *UserService) DeleteUser(ctx context.Context, caller Caller, id string) error {
	if caller.UserID == id {
		return apperror.Validation("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", caller.UserID))
	return nil
}
