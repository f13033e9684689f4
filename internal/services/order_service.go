package services

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
	"caffemacao/pkg/rabbitmq"
)

const (
	defaultOwnerOrdersPerPage = 10
	defaultAdminOrdersPerPage = 20

	defaultCancellationReason = "Cancelled by customer"
)

// MatchMode selects how listing filters compare against order fields.
type MatchMode string

const (
	MatchExact MatchMode = "exact"
	MatchRegex MatchMode = "regex"
)

// CreateOrderInput carries the checkout fields that override the cart's.
type CreateOrderInput struct {
	PaymentMethod   *models.PaymentMethod
	ShippingAddress *models.Address
}

// OrderFilter narrows an order listing. Empty fields do not filter.
type OrderFilter struct {
	OrderNumber   string
	PaymentStatus string
	OrderStatus   string
	Match         MatchMode
	Page          int
	PerPage       int
}

// OrderList is a page of orders.
type OrderList struct {
	Orders  []models.Order
	Total   int64
	Page    int
	PerPage int
}

// OrderService handles checkout and the lifecycle of placed orders.
type OrderService struct {
	tx       Transactor
	orders   repositories.OrderRepository
	items    repositories.ItemRepository
	events   OrderEventPublisher
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderService. events may be nil.
func NewOrderService(tx Transactor, orders repositories.OrderRepository, items repositories.ItemRepository, events OrderEventPublisher, log *zap.Logger) *OrderService {
	return &OrderService{
		tx:       tx,
		orders:   orders,
		items:    items,
		events:   events,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// CreateOrder checks out the caller's cart. In one transaction every line's
// variant stock is checked and decremented, then the cart becomes a Processing
// order. Any failure leaves stock and cart untouched.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*models.Order, error) {
	if in.PaymentMethod != nil && !in.PaymentMethod.Valid() {
		return nil, apperror.Validation("invalid payment method '%s'", *in.PaymentMethod)
	}

	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.orders.FindCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return apperror.Validation("cart is empty")
		}

		for i := range cart.Items {
			taken, err := s.takeStock(ctx, cart.Items[i])
			if err != nil {
				return err
			}
			cart.Items[i].StockTaken = taken
		}

		if in.ShippingAddress != nil {
			cart.SetShippingAddress(*in.ShippingAddress)
		}
		if cart.ShippingAddress.IsZero() {
			return apperror.Validation("shipping address is required")
		}
		if in.PaymentMethod != nil {
			cart.PaymentMethod = *in.PaymentMethod
		}

		now := s.now()
		cart.OrderStatus = models.OrderStatusProcessing
		cart.PaymentStatus = models.PaymentStatusPending
		cart.OrderDate = &now
		cart.ReleaseCart()
		if err := s.orders.Update(ctx, cart); err != nil {
			return err
		}
		order = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	publishOrderEvent(ctx, s.events, s.log, rabbitmq.OrderCreated, order)
	return s.orders.GetByID(ctx, order.ID)
}

// takeStock decrements the stock of the line's variant and reports whether it
// did. Untracked variants are left alone.
func (s *OrderService) takeStock(ctx context.Context, line models.OrderItem) (bool, error) {
	variant, err := s.items.GetVariantForUpdate(ctx, line.VariantID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return false, apperror.NotFound("variant %s of '%s' is no longer available", line.SKU, line.ProductName)
		}
		return false, err
	}
	if variant.Stock.Untracked {
		return false, nil
	}
	if variant.Stock.Quantity < line.Quantity {
		return false, apperror.InsufficientStock(variant.SKU, variant.Stock.Quantity, line.Quantity)
	}
	if err := s.items.AdjustStock(ctx, variant.ID, -line.Quantity); err != nil {
		return false, err
	}
	return true, nil
}

// ListOrders returns placed orders visible to caller. Users only see their own
// orders; carts are never listed except to an admin filtering on Pending.
func (s *OrderService) ListOrders(ctx context.Context, caller Caller, f OrderFilter) (*OrderList, error) {
	def := defaultOwnerOrdersPerPage
	if caller.IsAdmin() {
		def = defaultAdminOrdersPerPage
	}
	p := pagination(f.Page, f.PerPage, def)

	q := repositories.OrderQuery{ExcludeCarts: true}
	if !caller.IsAdmin() {
		q.UserID = caller.UserID
	}

	switch f.Match {
	case "", MatchExact:
		if f.PaymentStatus != "" && !models.PaymentStatus(f.PaymentStatus).Valid() {
			return nil, apperror.Validation("invalid payment status '%s'", f.PaymentStatus)
		}
		if f.OrderStatus != "" && !models.OrderStatus(f.OrderStatus).Valid() {
			return nil, apperror.Validation("invalid order status '%s'", f.OrderStatus)
		}
		q.OrderNumber = f.OrderNumber
		q.PaymentStatus = f.PaymentStatus
		q.OrderStatus = f.OrderStatus
		if caller.IsAdmin() && models.OrderStatus(f.OrderStatus) == models.OrderStatusPending {
			q.ExcludeCarts = false
		}
		orders, total, err := s.orders.List(ctx, q, &p)
		if err != nil {
			return nil, err
		}
		return &OrderList{Orders: orders, Total: total, Page: p.Page, PerPage: p.PerPage}, nil

	case MatchRegex:
		return s.listMatching(ctx, q, f, p)

	default:
		return nil, apperror.Validation("invalid match mode '%s'", f.Match)
	}
}

// listMatching filters with regular expressions in memory and paginates the
// result, since pattern support differs between the database drivers.
func (s *OrderService) listMatching(ctx context.Context, q repositories.OrderQuery, f OrderFilter, p repositories.Pagination) (*OrderList, error) {
	type matcher struct {
		re    *regexp.Regexp
		field func(*models.Order) string
	}
	var matchers []matcher
	for _, c := range []struct {
		name, pattern string
		field         func(*models.Order) string
	}{
		{"orderNumber", f.OrderNumber, func(o *models.Order) string { return o.OrderNumber }},
		{"paymentStatus", f.PaymentStatus, func(o *models.Order) string { return string(o.PaymentStatus) }},
		{"orderStatus", f.OrderStatus, func(o *models.Order) string { return string(o.OrderStatus) }},
	} {
		if c.pattern == "" {
			continue
		}
		re, err := regexp.Compile(c.pattern)
		if err != nil {
			return nil, apperror.Validation("invalid pattern for %s: %v", c.name, err)
		}
		matchers = append(matchers, matcher{re: re, field: c.field})
	}

	all, _, err := s.orders.List(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	matched := make([]models.Order, 0, len(all))
	for i := range all {
		ok := true
		for _, m := range matchers {
			if !m.re.MatchString(m.field(&all[i])) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, all[i])
		}
	}

	start := p.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return &OrderList{Orders: matched[start:end], Total: int64(len(matched)), Page: p.Page, PerPage: p.PerPage}, nil
}

// GetOrder returns one order. Orders of other users are reported as not found
// to non-admin callers.
func (s *OrderService) GetOrder(ctx context.Context, caller Caller, orderID string) (*models.Order, error) {
	if caller.IsAdmin() {
		return s.orders.GetByID(ctx, orderID)
	}
	return s.orders.GetByIDForUser(ctx, orderID, caller.UserID)
}

// updatableOrderFields lists the fields an admin may patch.
var updatableOrderFields = map[string]bool{
	"orderStatus":     true,
	"paymentStatus":   true,
	"shippingAddress": true,
	"paymentMethod":   true,
	"shippingCost":    true,
	"discountCode":    true,
	"discountAmount":  true,
	"notes":           true,
}

// UpdateOrder applies an admin patch. A patch naming any field outside the
// whitelist is rejected as a whole. shippingAddress and shippingCost are
// merged into the current values.
func (s *OrderService) UpdateOrder(ctx context.Context, caller Caller, orderID string, patch map[string]json.RawMessage) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("admin access required")
	}
	if len(patch) == 0 {
		return nil, apperror.Validation("no fields to update")
	}
	var rejected []string
	for field := range patch {
		if !updatableOrderFields[field] {
			rejected = append(rejected, field)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, apperror.Validation("field(s) cannot be updated: %s", strings.Join(rejected, ", "))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.applyPatch(order, patch); err != nil {
		return nil, err
	}
	order.RecalculateTotals()
	if order.TotalAmount.IsNegative() {
		return nil, apperror.Validation("discountAmount exceeds the order total")
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	s.log.Info("order updated", zap.String("order_id", order.ID), zap.String("by", caller.UserID))
	publishOrderEvent(ctx, s.events, s.log, rabbitmq.OrderUpdated, order)
	return s.orders.GetByID(ctx, order.ID)
}

func (s *OrderService) applyPatch(order *models.Order, patch map[string]json.RawMessage) error {
	if raw, ok := patch["orderStatus"]; ok {
		var status models.OrderStatus
		if err := json.Unmarshal(raw, &status); err != nil || !status.Valid() {
			return apperror.Validation("invalid value for orderStatus")
		}
		if status != order.OrderStatus {
			if status == models.OrderStatusPending {
				return apperror.Validation("orders cannot be moved back to Pending")
			}
			if order.IsCart() {
				return apperror.Validation("order %s has not been checked out yet", order.OrderNumber)
			}
			order.OrderStatus = status
		}
	}
	if raw, ok := patch["paymentStatus"]; ok {
		var status models.PaymentStatus
		if err := json.Unmarshal(raw, &status); err != nil || !status.Valid() {
			return apperror.Validation("invalid value for paymentStatus")
		}
		order.PaymentStatus = status
	}
	if raw, ok := patch["paymentMethod"]; ok {
		var method models.PaymentMethod
		if err := json.Unmarshal(raw, &method); err != nil || !method.Valid() {
			return apperror.Validation("invalid value for paymentMethod")
		}
		order.PaymentMethod = method
	}
	if raw, ok := patch["shippingAddress"]; ok {
		addr := order.ShippingAddress
		if err := mergeJSON(raw, &addr); err != nil {
			return apperror.Validation("invalid value for shippingAddress: %v", err)
		}
		if err := s.validate.Struct(addr); err != nil {
			return apperror.Validation("invalid value for shippingAddress: %v", err)
		}
		order.SetShippingAddress(addr)
	}
	if raw, ok := patch["shippingCost"]; ok {
		cost := order.ShippingCost
		if err := mergeJSON(raw, &cost); err != nil {
			return apperror.Validation("invalid value for shippingCost: %v", err)
		}
		if cost.Amount.IsNegative() {
			return apperror.Validation("shippingCost must not be negative")
		}
		if cost.Currency != order.Currency {
			return apperror.Validation("shippingCost must be in %s", order.Currency)
		}
		order.ShippingCost = cost
	}
	if raw, ok := patch["discountCode"]; ok {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			return apperror.Validation("invalid value for discountCode")
		}
		order.DiscountCode = strings.TrimSpace(code)
	}
	if raw, ok := patch["discountAmount"]; ok {
		var amount decimal.Decimal
		if err := json.Unmarshal(raw, &amount); err != nil || amount.IsNegative() {
			return apperror.Validation("invalid value for discountAmount")
		}
		order.DiscountAmount = amount.Round(2)
	}
	if raw, ok := patch["notes"]; ok {
		var notes string
		if err := json.Unmarshal(raw, &notes); err != nil {
			return apperror.Validation("invalid value for notes")
		}
		order.Notes = notes
	}
	return nil
}

// mergeJSON decodes raw over dst, keeping the fields raw does not mention and
// rejecting fields dst does not have.
func mergeJSON(raw json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// UpdatePaymentStatus sets the payment status of an order. Any transition
// between known statuses is accepted so admins can correct mistakes.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, caller Caller, orderID string, status models.PaymentStatus) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("admin access required")
	}
	if !status.Valid() {
		return nil, apperror.Validation("invalid payment status '%s'", status)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	previous := order.PaymentStatus
	order.PaymentStatus = status
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	s.log.Info("payment status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("by", caller.UserID))
	publishOrderEvent(ctx, s.events, s.log, rabbitmq.OrderUpdated, order)
	return order, nil
}

// CancelOrder cancels one of the caller's Pending or Processing orders. Stock
// taken at checkout is restored in the same transaction as the status change.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID, reason string) error {
	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByIDForUser(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if !o.Cancellable() {
			return apperror.Validation("order %s is no longer cancellable", o.OrderNumber)
		}

		// A cart never took stock, so only placed orders give it back.
		if !o.IsCart() {
			for _, line := range o.Items {
				if err := s.returnStock(ctx, line); err != nil {
					return err
				}
			}
		}

		o.OrderStatus = models.OrderStatusCancelled
		o.PaymentStatus = models.PaymentStatusRefunded
		o.CancellationReason = strings.TrimSpace(reason)
		if o.CancellationReason == "" {
			o.CancellationReason = defaultCancellationReason
		}
		o.ReleaseCart()
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("order cancelled", zap.String("order_id", order.ID), zap.String("user_id", userID))
	publishOrderEvent(ctx, s.events, s.log, rabbitmq.OrderCancelled, order)
	return nil
}

// returnStock gives back what takeStock took for the line, whatever the
// variant's tracking flag says today.
func (s *OrderService) returnStock(ctx context.Context, line models.OrderItem) error {
	if !line.StockTaken {
		return nil
	}
	variant, err := s.items.GetVariantForUpdate(ctx, line.VariantID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return apperror.NotFound("variant %s of '%s' no longer exists", line.SKU, line.ProductName)
		}
		return err
	}
	return s.items.AdjustStock(ctx, variant.ID, line.Quantity)
}
