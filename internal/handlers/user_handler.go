package handlers

import (
	"github.com/gofiber/fiber/v2"

	"caffemacao/internal/middleware"
	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/response"
)

// UserHandler handles profile and user management requests.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes registers the user routes. All of them need a token and
// everything but /users/me needs the admin role.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	users := router.Group("/users", auth)
	users.Get("/me", h.HandleGetProfile)
	users.Patch("/me", h.HandleUpdateProfile)

	admin := middleware.AdminOnly()
	users.Get("/", admin, h.HandleListUsers)
	users.Get("/:userId", admin, h.HandleGetUser)
	users.Patch("/:userId", admin, h.HandleUpdateRole)
	users.Delete("/:userId", admin, h.HandleDeleteUser)
}

func (h *UserHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := h.service.GetProfile(c.UserContext(), middleware.CallerFrom(c).UserID)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, user)
}

// ProfileRequest represents the request body for a profile update.
type ProfileRequest struct {
	Name            *string         `json:"name" validate:"omitempty,max=100"`
	Phone           *string         `json:"phone" validate:"omitempty,max=30"`
	ShippingAddress *models.Address `json:"shippingAddress"`
}

func (h *UserHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.UserContext(), middleware.CallerFrom(c).UserID, services.ProfileInput{
		Name:            req.Name,
		Phone:           req.Phone,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, user)
}

func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	page, perPage := pageQuery(c)
	list, err := h.service.ListUsers(c.UserContext(), page, perPage)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.NewPage(list.Users, list.Total, list.Page, list.PerPage))
}

func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, user)
}

// RoleRequest represents the request body for a role change.
type RoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=user admin"`
}

func (h *UserHandler) HandleUpdateRole(c *fiber.Ctx) error {
	var req RoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateRole(c.UserContext(), middleware.CallerFrom(c), c.Params("userId"), req.Role)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, user)
}

func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), middleware.CallerFrom(c), c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
