package models

// ProductKind discriminates product categories. Each kind owns its own set of
// variant attributes instead of a subtype.
type ProductKind string

const (
	KindCoffeeCapsule ProductKind = "coffee_capsule"
)

// Valid reports whether k is a supported product kind.
func (k ProductKind) Valid() bool {
	return k == KindCoffeeCapsule
}

// Item is a catalog product. Its sellable units are the variants.
type Item struct {
	Base
	Name          string        `json:"name" gorm:"type:varchar(150);not null"`
	Slug          string        `json:"slug" gorm:"uniqueIndex:idx_items_slug_live,where:deleted_at IS NULL;type:varchar(160);not null"`
	Description   string        `json:"description" gorm:"type:text"`
	Brand         string        `json:"brand" gorm:"type:varchar(100)"`
	Kind          ProductKind   `json:"kind" gorm:"type:varchar(30);not null"`
	Active        bool          `json:"active"`
	AverageRating float64       `json:"averageRating"`
	ReviewCount   int           `json:"reviewCount"`
	Variants      []ItemVariant `json:"variants,omitempty" gorm:"foreignKey:ItemID"`
}

// Stock is the inventory counter of a variant. Untracked variants are never
// checked or decremented.
type Stock struct {
	Quantity  int  `json:"quantity" gorm:"not null"`
	Untracked bool `json:"untracked"`
}

// Covers reports whether the stock can serve quantity units.
func (s Stock) Covers(quantity int) bool {
	return s.Untracked || s.Quantity >= quantity
}

// CapsuleSpec holds the attributes of a coffee_capsule variant.
type CapsuleSpec struct {
	Intensity       int    `json:"intensity" validate:"omitempty,min=1,max=13"`
	CapsulesPerPack int    `json:"capsulesPerPack" validate:"omitempty,min=1"`
	Compatibility   string `json:"compatibility" gorm:"type:varchar(50)" validate:"omitempty,max=50"`
}

// ItemVariant is a sellable SKU of an item with its own price and stock.
type ItemVariant struct {
	Base
	ItemID    string      `json:"item" gorm:"index;type:varchar(36);not null"`
	Kind      ProductKind `json:"kind" gorm:"type:varchar(30);not null"`
	Name      string      `json:"name" gorm:"type:varchar(150);not null"`
	SKU       string      `json:"sku" gorm:"uniqueIndex:idx_item_variants_sku_live,where:deleted_at IS NULL;type:varchar(64);not null"`
	Price     Money       `json:"price" gorm:"embedded;embeddedPrefix:price_"`
	Stock     Stock       `json:"stock" gorm:"embedded;embeddedPrefix:stock_"`
	MainImage Image       `json:"mainImage" gorm:"embedded;embeddedPrefix:image_"`
	Capsule   CapsuleSpec `json:"capsule" gorm:"embedded;embeddedPrefix:capsule_"`
}

// Review is a customer rating of an item. One per user and item.
type Review struct {
	Base
	ItemID  string `json:"item" gorm:"uniqueIndex:idx_review_item_user;type:varchar(36);not null"`
	UserID  string `json:"user" gorm:"uniqueIndex:idx_review_item_user;type:varchar(36);not null"`
	Rating  int    `json:"rating" gorm:"not null"`
	Comment string `json:"comment" gorm:"type:text"`
}
