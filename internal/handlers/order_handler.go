package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"caffemacao/internal/middleware"
	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/apperror"
	"caffemacao/pkg/response"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	admin := middleware.AdminOnly()

	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:orderId", h.HandleGetOrder)
	orderRoutes.Patch("/:orderId", admin, h.HandleUpdateOrder)
	orderRoutes.Patch("/:orderId/payment-status", admin, h.HandleUpdatePaymentStatus)
	orderRoutes.Post("/:orderId/cancel", h.HandleCancelOrder)
}

// HandleListOrders lists the caller's orders, or every order for admins.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	page, perPage := pageQuery(c)
	list, err := h.service.ListOrders(c.UserContext(), middleware.CallerFrom(c), services.OrderFilter{
		OrderNumber:   c.Query("orderNumber"),
		PaymentStatus: c.Query("paymentStatus"),
		OrderStatus:   c.Query("orderStatus"),
		Match:         services.MatchMode(c.Query("match", string(services.MatchExact))),
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.NewPage(list.Orders, list.Total, list.Page, list.PerPage))
}

// CreateOrderRequest overrides the cart's checkout details. The body is optional.
type CreateOrderRequest struct {
	PaymentMethod   *models.PaymentMethod `json:"paymentMethod"`
	ShippingAddress *models.Address       `json:"shippingAddress"`
}

// HandleCreateOrder checks out the caller's cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}
	order, err := h.service.CreateOrder(c.UserContext(), middleware.CallerFrom(c).UserID, services.CreateOrderInput{
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusCreated, order)
}

// HandleGetOrder retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.CallerFrom(c), c.Params("orderId"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, order)
}

// HandleUpdateOrder applies a partial update. Unknown or protected fields
// reject the whole request.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return apperror.Validation("request body must be a JSON object")
	}
	order, err := h.service.UpdateOrder(c.UserContext(), middleware.CallerFrom(c), c.Params("orderId"), patch)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, order)
}

// PaymentStatusRequest represents the request body for a payment status change.
type PaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus" validate:"required"`
}

func (h *OrderHandler) HandleUpdatePaymentStatus(c *fiber.Ctx) error {
	var req PaymentStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	order, err := h.service.UpdatePaymentStatus(c.UserContext(), middleware.CallerFrom(c), c.Params("orderId"), req.PaymentStatus)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, order)
}

// CancelRequest optionally explains a cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleCancelOrder cancels one of the caller's orders and restocks it.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req CancelRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}
	if err := h.service.CancelOrder(c.UserContext(), middleware.CallerFrom(c).UserID, c.Params("orderId"), req.Reason); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
