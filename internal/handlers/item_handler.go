package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"caffemacao/internal/middleware"
	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/response"
)

// ItemHandler handles catalog and review requests.
type ItemHandler struct {
	catalog *services.CatalogService
	reviews *services.ReviewService
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(catalog *services.CatalogService, reviews *services.ReviewService) *ItemHandler {
	return &ItemHandler{catalog: catalog, reviews: reviews}
}

// RegisterRoutes registers the catalog routes. Reads are public; optional
// resolves an admin caller so inactive items become visible to them.
func (h *ItemHandler) RegisterRoutes(router fiber.Router, auth, optional fiber.Handler) {
	admin := middleware.AdminOnly()

	items := router.Group("/items")
	items.Get("/", optional, h.HandleListItems)
	items.Get("/:itemId", optional, h.HandleGetItem)
	items.Post("/", auth, admin, h.HandleCreateItem)
	items.Put("/:itemId", auth, admin, h.HandleUpdateItem)
	items.Delete("/:itemId", auth, admin, h.HandleDeleteItem)

	items.Post("/:itemId/variants", auth, admin, h.HandleAddVariant)
	items.Put("/:itemId/variants/:variantId", auth, admin, h.HandleUpdateVariant)
	items.Delete("/:itemId/variants/:variantId", auth, admin, h.HandleDeleteVariant)
	items.Patch("/:itemId/variants/:variantId/stock", auth, admin, h.HandleAdjustStock)

	items.Get("/:itemId/reviews", h.HandleListReviews)
	items.Post("/:itemId/reviews", auth, h.HandleCreateReview)
	router.Delete("/reviews/:reviewId", auth, h.HandleDeleteReview)
}

// ItemRequest represents the request body for creating or replacing an item.
type ItemRequest struct {
	Name        string             `json:"name" validate:"required,max=150"`
	Slug        string             `json:"slug" validate:"omitempty,max=160"`
	Description string             `json:"description"`
	Brand       string             `json:"brand" validate:"omitempty,max=100"`
	Kind        models.ProductKind `json:"kind"`
	Active      *bool              `json:"active"`
	Variants    []VariantRequest   `json:"variants" validate:"dive"`
}

// VariantRequest represents the request body for creating or replacing a variant.
// Stock is only read when the variant is created.
type VariantRequest struct {
	Name      string             `json:"name" validate:"required,max=150"`
	SKU       string             `json:"sku" validate:"required,max=64"`
	Price     decimal.Decimal    `json:"price"`
	Currency  string             `json:"currency" validate:"omitempty,len=3"`
	Stock     int                `json:"stock" validate:"min=0"`
	Untracked bool               `json:"untracked"`
	MainImage models.Image       `json:"mainImage"`
	Capsule   models.CapsuleSpec `json:"capsule"`
}

func (r VariantRequest) input() services.VariantInput {
	return services.VariantInput{
		Name:      r.Name,
		SKU:       r.SKU,
		Price:     r.Price,
		Currency:  r.Currency,
		Stock:     r.Stock,
		Untracked: r.Untracked,
		MainImage: r.MainImage,
		Capsule:   r.Capsule,
	}
}

func (r ItemRequest) input() services.ItemInput {
	in := services.ItemInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Brand:       r.Brand,
		Kind:        r.Kind,
		Active:      r.Active,
	}
	for _, v := range r.Variants {
		in.Variants = append(in.Variants, v.input())
	}
	return in
}

// HandleListItems returns a page of the catalog.
func (h *ItemHandler) HandleListItems(c *fiber.Ctx) error {
	page, perPage := pageQuery(c)
	list, err := h.catalog.ListItems(c.UserContext(), services.ItemQuery{
		Search:          c.Query("search"),
		IncludeInactive: middleware.CallerFrom(c).IsAdmin() && c.QueryBool("includeInactive"),
		Page:            page,
		PerPage:         perPage,
	})
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.NewPage(list.Items, list.Total, list.Page, list.PerPage))
}

// HandleGetItem returns one item with its variants.
func (h *ItemHandler) HandleGetItem(c *fiber.Ctx) error {
	item, err := h.catalog.GetItem(c.UserContext(), c.Params("itemId"), middleware.CallerFrom(c).IsAdmin())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, item)
}

func (h *ItemHandler) HandleCreateItem(c *fiber.Ctx) error {
	var req ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.catalog.CreateItem(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusCreated, item)
}

func (h *ItemHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.catalog.UpdateItem(c.UserContext(), c.Params("itemId"), req.input())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, item)
}

func (h *ItemHandler) HandleDeleteItem(c *fiber.Ctx) error {
	if err := h.catalog.DeleteItem(c.UserContext(), c.Params("itemId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ItemHandler) HandleAddVariant(c *fiber.Ctx) error {
	var req VariantRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	variant, err := h.catalog.AddVariant(c.UserContext(), c.Params("itemId"), req.input())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusCreated, variant)
}

func (h *ItemHandler) HandleUpdateVariant(c *fiber.Ctx) error {
	var req VariantRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	variant, err := h.catalog.UpdateVariant(c.UserContext(), c.Params("itemId"), c.Params("variantId"), req.input())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, variant)
}

func (h *ItemHandler) HandleDeleteVariant(c *fiber.Ctx) error {
	if err := h.catalog.DeleteVariant(c.UserContext(), c.Params("itemId"), c.Params("variantId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StockRequest represents a stock adjustment. Delta may be negative.
type StockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *ItemHandler) HandleAdjustStock(c *fiber.Ctx) error {
	var req StockRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	variant, err := h.catalog.AdjustStock(c.UserContext(), c.Params("itemId"), c.Params("variantId"), req.Delta)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, variant)
}

func (h *ItemHandler) HandleListReviews(c *fiber.Ctx) error {
	reviews, err := h.reviews.ListReviews(c.UserContext(), c.Params("itemId"))
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, reviews)
}

// ReviewRequest represents the request body for a review.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *ItemHandler) HandleCreateReview(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	review, err := h.reviews.CreateReview(c.UserContext(), middleware.CallerFrom(c).UserID, c.Params("itemId"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusCreated, review)
}

func (h *ItemHandler) HandleDeleteReview(c *fiber.Ctx) error {
	if err := h.reviews.DeleteReview(c.UserContext(), middleware.CallerFrom(c), c.Params("reviewId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
