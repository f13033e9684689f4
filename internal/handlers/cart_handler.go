package handlers

import (
	"github.com/gofiber/fiber/v2"

	"caffemacao/internal/middleware"
	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/response"
)

// CartHandler handles requests against the caller's cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes registers the cart routes. Every route acts on the cart of
// the authenticated caller.
func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cart := router.Group("/cart", auth)
	cart.Get("/", h.HandleGetCart)
	cart.Delete("/", h.HandleClearCart)
	cart.Post("/items", h.HandleAddItem)
	cart.Put("/items/:itemId/:variantId", h.HandleUpdateItemQuantity)
	cart.Delete("/items/:itemId/:variantId", h.HandleRemoveItem)
	cart.Put("/checkout-details", h.HandleUpdateCheckoutDetails)
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), middleware.CallerFrom(c).UserID)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}

// AddItemRequest represents the request body for adding a variant to the cart.
type AddItemRequest struct {
	ItemID    string `json:"itemId" validate:"required"`
	VariantID string `json:"variantId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cart, err := h.service.AddItem(c.UserContext(), middleware.CallerFrom(c).UserID, services.AddItemInput{
		ItemID:    req.ItemID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}

// QuantityRequest sets the quantity of a cart line. Zero removes the line.
type QuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

func (h *CartHandler) HandleUpdateItemQuantity(c *fiber.Ctx) error {
	var req QuantityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cart, err := h.service.UpdateItemQuantity(c.UserContext(), middleware.CallerFrom(c).UserID,
		c.Params("itemId"), c.Params("variantId"), *req.Quantity)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	cart, err := h.service.RemoveItem(c.UserContext(), middleware.CallerFrom(c).UserID, c.Params("itemId"), c.Params("variantId"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}

// CheckoutDetailsRequest represents the optional checkout fields of a cart.
type CheckoutDetailsRequest struct {
	ShippingAddress *models.Address       `json:"shippingAddress"`
	PaymentMethod   *models.PaymentMethod `json:"paymentMethod"`
}

func (h *CartHandler) HandleUpdateCheckoutDetails(c *fiber.Ctx) error {
	var req CheckoutDetailsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cart, err := h.service.UpdateCheckoutDetails(c.UserContext(), middleware.CallerFrom(c).UserID, services.CheckoutDetailsInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	cart, err := h.service.ClearCart(c.UserContext(), middleware.CallerFrom(c).UserID)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, cart)
}
