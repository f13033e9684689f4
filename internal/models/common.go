package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base carries the identity and bookkeeping columns shared by every entity.
type Base struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Money is an amount in a given ISO 4217 currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency string          `json:"currency" gorm:"type:varchar(3);not null"`
}

// NewMoney is a convenience constructor for string amounts such as "12.50".
func NewMoney(amount string, currency string) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

// Address is a postal address. Phone doubles as the order contact number.
type Address struct {
	FullName   string `json:"fullName" gorm:"type:varchar(120)" validate:"required,max=120"`
	Street     string `json:"street" gorm:"type:varchar(200)" validate:"required,max=200"`
	City       string `json:"city" gorm:"type:varchar(100)" validate:"required,max=100"`
	PostalCode string `json:"postalCode" gorm:"type:varchar(20)" validate:"required,max=20"`
	Province   string `json:"province" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Country    string `json:"country" gorm:"type:varchar(100)" validate:"required,max=100"`
	Phone      string `json:"phone" gorm:"type:varchar(30)" validate:"required,max=30"`
}

// IsZero reports whether no address has been recorded.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Image references an asset on the external image host.
type Image struct {
	URL      string `json:"url" gorm:"type:varchar(500)" validate:"omitempty,url,max=500"`
	PublicID string `json:"public_id" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
	AltText  string `json:"altText" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
}
