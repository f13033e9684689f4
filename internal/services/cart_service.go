package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
)

const cartCreateAttempts = 3

// CartConfig holds the store settings applied to new carts and lines.
type CartConfig struct {
	Currency            string
	ShippingCost        decimal.Decimal
	PlaceholderImageURL string
}

// AddItemInput identifies the variant and quantity to put in the cart.
type AddItemInput struct {
	ItemID    string
	VariantID string
	Quantity  int
}

// CheckoutDetailsInput carries the optional checkout fields of a cart.
type CheckoutDetailsInput struct {
	ShippingAddress *models.Address
	PaymentMethod   *models.PaymentMethod
}

// CartService maintains the caller's cart: the single Pending order of a user.
// Cart edits are not transactional; concurrent edits of the same cart are
// detected by the order revision and surface as Conflict.
type CartService struct {
	orders repositories.OrderRepository
	items  repositories.ItemRepository
	cfg    CartConfig
	log    *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(orders repositories.OrderRepository, items repositories.ItemRepository, cfg CartConfig, log *zap.Logger) *CartService {
	return &CartService{orders: orders, items: items, cfg: cfg, log: log}
}

// GetCart returns the caller's cart, creating an empty one on first use.
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.Validation("user id is required")
	}

	var lastErr error
	for attempt := 0; attempt < cartCreateAttempts; attempt++ {
		cart, err := s.orders.FindCart(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}

		cart = models.NewCart(userID, models.Money{Amount: s.cfg.ShippingCost, Currency: s.cfg.Currency})
		err = s.orders.Create(ctx, cart)
		if err == nil {
			s.log.Debug("cart created", zap.String("user_id", userID), zap.String("order_number", cart.OrderNumber))
			return cart, nil
		}
		if !apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		// Another request created the cart, or took the order number, first.
		lastErr = err
	}
	return nil, lastErr
}

// AddItem puts quantity units of a variant in the cart, merging with an
// existing line for the same variant. Stock is checked against the resulting
// line quantity but not reserved.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddItemInput) (*models.Order, error) {
	if in.Quantity < 1 {
		return nil, apperror.Validation("quantity must be a positive integer")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, variant, err := s.loadVariant(ctx, in.ItemID, in.VariantID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, apperror.Validation("item '%s' is not available", item.Name)
	}
	if variant.Price.Currency != cart.Currency {
		return nil, apperror.Validation("variant %s is priced in %s, cart uses %s", variant.SKU, variant.Price.Currency, cart.Currency)
	}

	if i := cart.FindLine(item.ID, variant.ID); i >= 0 {
		total := cart.Items[i].Quantity + in.Quantity
		if !variant.Stock.Covers(total) {
			return nil, apperror.InsufficientStock(variant.SKU, variant.Stock.Quantity, total)
		}
		cart.Items[i].Quantity = total
	} else {
		if !variant.Stock.Covers(in.Quantity) {
			return nil, apperror.InsufficientStock(variant.SKU, variant.Stock.Quantity, in.Quantity)
		}
		cart.Items = append(cart.Items, s.snapshot(item, variant, in.Quantity))
	}

	return s.save(ctx, cart)
}

// snapshot captures the catalog data shown on a cart line. It is never
// refreshed from the catalog afterwards.
func (s *CartService) snapshot(item *models.Item, variant *models.ItemVariant, quantity int) models.OrderItem {
	image := variant.MainImage
	if image.URL == "" {
		image = models.Image{URL: s.cfg.PlaceholderImageURL, AltText: item.Name}
	}
	return models.OrderItem{
		ItemID:          item.ID,
		VariantID:       variant.ID,
		ProductName:     item.Name,
		VariantName:     variant.Name,
		SKU:             variant.SKU,
		VariantImageURL: image,
		Price:           variant.Price,
		Quantity:        quantity,
	}
}

// UpdateItemQuantity sets the quantity of a cart line. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID, variantID string, quantity int) (*models.Order, error) {
	if quantity < 0 {
		return nil, apperror.Validation("quantity must not be negative")
	}
	cart, err := s.orders.FindCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(itemID, variantID)
	if i < 0 {
		return nil, apperror.NotFound("item is not in the cart")
	}

	if quantity == 0 {
		cart.RemoveLine(i)
		return s.save(ctx, cart)
	}

	variant, err := s.items.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if !variant.Stock.Covers(quantity) {
		return nil, apperror.InsufficientStock(variant.SKU, variant.Stock.Quantity, quantity)
	}
	cart.Items[i].Quantity = quantity
	return s.save(ctx, cart)
}

// RemoveItem deletes a cart line. Removing a line that is not in the cart
// succeeds without changing anything.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID, variantID string) (*models.Order, error) {
	cart, err := s.orders.FindCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(itemID, variantID)
	if i < 0 {
		return cart, nil
	}
	cart.RemoveLine(i)
	return s.save(ctx, cart)
}

// UpdateCheckoutDetails replaces the shipping address and/or payment method.
func (s *CartService) UpdateCheckoutDetails(ctx context.Context, userID string, in CheckoutDetailsInput) (*models.Order, error) {
	if in.PaymentMethod != nil && !in.PaymentMethod.Valid() {
		return nil, apperror.Validation("invalid payment method '%s'", *in.PaymentMethod)
	}
	cart, err := s.orders.FindCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.ShippingAddress != nil {
		cart.SetShippingAddress(*in.ShippingAddress)
	}
	if in.PaymentMethod != nil {
		cart.PaymentMethod = *in.PaymentMethod
	}
	return s.save(ctx, cart)
}

// ClearCart removes every line of the cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*models.Order, error) {
	cart, err := s.orders.FindCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}
	cart.Items = []models.OrderItem{}
	return s.save(ctx, cart)
}

func (s *CartService) loadVariant(ctx context.Context, itemID, variantID string) (*models.Item, *models.ItemVariant, error) {
	if strings.TrimSpace(itemID) == "" || strings.TrimSpace(variantID) == "" {
		return nil, nil, apperror.Validation("itemId and variantId are required")
	}
	item, err := s.items.GetItem(ctx, itemID, false)
	if err != nil {
		return nil, nil, err
	}
	variant, err := s.items.GetVariant(ctx, variantID)
	if err != nil {
		return nil, nil, err
	}
	if variant.ItemID != item.ID {
		return nil, nil, apperror.Validation("variant %s does not belong to item %s", variantID, itemID)
	}
	return item, variant, nil
}

// save persists the cart and returns it with catalog references populated.
func (s *CartService) save(ctx context.Context, cart *models.Order) (*models.Order, error) {
	if err := s.orders.Update(ctx, cart); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, cart.ID)
}
