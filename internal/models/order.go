package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order. Pending means the order is
// still the user's cart.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusReturned   OrderStatus = "Returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
	OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "Pending"
	PaymentStatusPaid              PaymentStatus = "Paid"
	PaymentStatusFailed            PaymentStatus = "Failed"
	PaymentStatusRefunded          PaymentStatus = "Refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "Partially Refunded"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed,
	PaymentStatusRefunded, PaymentStatusPartiallyRefunded,
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	for _, known := range paymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "Credit Card"
	PaymentMethodPayPal         PaymentMethod = "PayPal"
	PaymentMethodBankTransfer   PaymentMethod = "Bank Transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "Cash on Delivery"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodBankTransfer, PaymentMethodCashOnDelivery,
}

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	for _, known := range paymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// OrderItem is a cart or order line. Names, SKU, image and price are copied
// from the catalog when the line is created and never refreshed. StockTaken
// records whether checkout decremented the variant stock for this line.
type OrderItem struct {
	ID              string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string       `json:"-" gorm:"index;type:varchar(36);not null"`
	Position        int          `json:"-" gorm:"not null"`
	ItemID          string       `json:"itemId" gorm:"type:varchar(36);not null"`
	VariantID       string       `json:"variantId" gorm:"type:varchar(36);not null"`
	Item            *Item        `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Variant         *ItemVariant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	ProductName     string       `json:"productName" gorm:"type:varchar(150);not null"`
	VariantName     string       `json:"variantName" gorm:"type:varchar(150);not null"`
	SKU             string       `json:"sku" gorm:"type:varchar(64);not null"`
	VariantImageURL Image        `json:"variantImageUrl" gorm:"embedded;embeddedPrefix:image_"`
	Price           Money        `json:"price" gorm:"embedded;embeddedPrefix:price_"`
	Quantity        int          `json:"quantity" gorm:"not null"`
	StockTaken      bool         `json:"-" gorm:"not null;default:false"`
}

// LineTotal is price times quantity.
func (li OrderItem) LineTotal() decimal.Decimal {
	return li.Price.Amount.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a customer order. While OrderStatus is Pending it is the user's cart.
type Order struct {
	Base
	OrderNumber        string          `json:"orderNumber" gorm:"uniqueIndex;type:varchar(20);not null"`
	UserID             string          `json:"user" gorm:"index;type:varchar(36);not null"`
	CartOwner          *string         `json:"-" gorm:"uniqueIndex;type:varchar(36)"`
	Revision           int             `json:"revision" gorm:"not null"`
	Items              []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	ShippingCost       Money           `json:"shippingCost" gorm:"embedded;embeddedPrefix:shipping_cost_"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	DiscountCode       string          `json:"discountCode,omitempty" gorm:"type:varchar(50)"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" gorm:"type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal `json:"totalAmount" gorm:"type:numeric(12,2);not null"`
	Currency           string          `json:"currency" gorm:"type:varchar(3);not null"`
	ShippingAddress    Address         `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	Phone              string          `json:"phone,omitempty" gorm:"type:varchar(30)"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod,omitempty" gorm:"type:varchar(30)"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus" gorm:"index;type:varchar(30);not null"`
	OrderStatus        OrderStatus     `json:"orderStatus" gorm:"index;type:varchar(20);not null"`
	Notes              string          `json:"notes,omitempty" gorm:"type:text"`
	CancellationReason string          `json:"cancellationReason,omitempty" gorm:"type:varchar(500)"`
	OrderDate          *time.Time      `json:"orderDate,omitempty"`
}

// NewCart returns an empty Pending order owned by userID.
func NewCart(userID string, shipping Money) *Order {
	owner := userID
	return &Order{
		UserID:         userID,
		CartOwner:      &owner,
		Items:          []OrderItem{},
		ShippingCost:   shipping,
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    shipping.Amount,
		Currency:       shipping.Currency,
		PaymentStatus:  PaymentStatusPending,
		OrderStatus:    OrderStatusPending,
	}
}

// IsCart reports whether the order is still the user's cart.
func (o *Order) IsCart() bool {
	return o.OrderStatus == OrderStatusPending
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}

// Cancellable reports whether the owner may still cancel the order.
func (o *Order) Cancellable() bool {
	return o.OrderStatus == OrderStatusPending || o.OrderStatus == OrderStatusProcessing
}

// ReleaseCart detaches the order from the per-user cart slot so a new cart
// can be created for the owner.
func (o *Order) ReleaseCart() {
	o.CartOwner = nil
}

// RecalculateTotals recomputes Subtotal and TotalAmount from the lines.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	for _, line := range o.Items {
		subtotal = subtotal.Add(line.LineTotal())
	}
	o.Subtotal = subtotal
	o.TotalAmount = subtotal.Add(o.ShippingCost.Amount).Sub(o.DiscountAmount)
}

// FindLine returns the index of the (itemID, variantID) line or -1.
func (o *Order) FindLine(itemID, variantID string) int {
	for i, line := range o.Items {
		if line.ItemID == itemID && line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// RemoveLine deletes the line at index i, keeping the order of the others.
func (o *Order) RemoveLine(i int) {
	o.Items = append(o.Items[:i], o.Items[i+1:]...)
}

// SetShippingAddress replaces the address and derives the contact phone.
func (o *Order) SetShippingAddress(addr Address) {
	o.ShippingAddress = addr
	o.Phone = addr.Phone
}

// QuantityByVariant sums line quantities per variant id.
func (o *Order) QuantityByVariant() map[string]int {
	out := make(map[string]int, len(o.Items))
	for _, line := range o.Items {
		out[line.VariantID] += line.Quantity
	}
	return out
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// NextOrderNumber returns the number following previous, formatted as
// ORD-<year>-<5-digit sequence>. The sequence restarts at 1 when previous has
// no numeric suffix.
func NextOrderNumber(previous string, now time.Time) string {
	seq := 1
	if m := trailingDigits.FindStringSubmatch(previous); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("ORD-%d-%05d", now.Year(), seq)
}
