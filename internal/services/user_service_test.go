package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/internal/services"
	"caffemacao/pkg/apperror"
)

func TestUserService_UpdateProfile(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, zap.NewNop())
	ctx := context.Background()

	user := &models.User{Base: models.Base{ID: "u-1"}, Name: "Old", Email: "a@b.c", Role: models.RoleUser}
	mockRepo.On("GetByID", ctx, "u-1").Return(user, nil)
	mockRepo.On("Update", ctx, user).Return(nil).Once()

	name := " New Name "
	addr := testAddress()
	updated, err := service.UpdateProfile(ctx, "u-1", services.ProfileInput{Name: &name, ShippingAddress: addr})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "Macau", updated.ShippingAddress.City)

	empty := ""
	_, err = service.UpdateProfile(ctx, "u-1", services.ProfileInput{Name: &empty})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	mockRepo.AssertExpectations(t)
}

func TestUserService_ListUsersClampsPage(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, zap.NewNop())
	ctx := context.Background()

	users := []models.User{{Name: "A"}, {Name: "B"}}
	mockRepo.On("List", ctx, repositories.Pagination{Page: 1, PerPage: 25}).Return(users, int64(2), nil).Once()

	list, err := service.ListUsers(ctx, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, users, list.Users)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, 25, list.PerPage)
	mockRepo.AssertExpectations(t)
}

func TestUserService_AdminGuards(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := services.NewUserService(mockRepo, zap.NewNop())
	ctx := context.Background()

	_, err := service.UpdateRole(ctx, admin, admin.UserID, models.RoleUser)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = service.UpdateRole(ctx, admin, "u-1", "superuser")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.True(t, apperror.Is(service.DeleteUser(ctx, admin, admin.UserID), apperror.KindValidation))

	target := &models.User{Base: models.Base{ID: "u-1"}, Role: models.RoleUser}
	mockRepo.On("GetByID", ctx, "u-1").Return(target, nil).Once()
	mockRepo.On("Update", ctx, mock.MatchedBy(func(u *models.User) bool { return u.Role == models.RoleAdmin })).Return(nil).Once()
	promoted, err := service.UpdateRole(ctx, admin, "u-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	mockRepo.On("Delete", ctx, "u-1").Return(nil).Once()
	assert.NoError(t, service.DeleteUser(ctx, admin, "u-1"))
	mockRepo.AssertExpectations(t)
}
