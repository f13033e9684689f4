package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
)

const defaultItemsPerPage = 12

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ItemInput describes an item to create or replace. Variants are only read on
// creation.
type ItemInput struct {
	Name        string
	Slug        string
	Description string
	Brand       string
	Kind        models.ProductKind
	Active      *bool
	Variants    []VariantInput
}

// VariantInput describes a variant to create or replace. Stock is the
// opening quantity and is ignored when a variant is replaced.
type VariantInput struct {
	Name      string
	SKU       string
	Price     decimal.Decimal
	Currency  string
	Stock     int
	Untracked bool
	MainImage models.Image
	Capsule   models.CapsuleSpec
}

// ItemQuery selects a page of the catalog.
type ItemQuery struct {
	Search          string
	IncludeInactive bool
	Page            int
	PerPage         int
}

// ItemList is a page of catalog items.
type ItemList struct {
	Items   []models.Item
	Total   int64
	Page    int
	PerPage int
}

// CatalogService handles business logic related to items and their variants.
type CatalogService struct {
	repo     repositories.ItemRepository
	tx       Transactor
	currency string
	log      *zap.Logger
}

// NewCatalogService creates a new CatalogService. Every price must be in
// currency.
func NewCatalogService(repo repositories.ItemRepository, tx Transactor, currency string, log *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, tx: tx, currency: currency, log: log}
}

// ListItems returns a page of items with their variants.
func (s *CatalogService) ListItems(ctx context.Context, q ItemQuery) (*ItemList, error) {
	p := pagination(q.Page, q.PerPage, defaultItemsPerPage)
	items, total, err := s.repo.ListItems(ctx, repositories.ItemFilter{Search: q.Search, ActiveOnly: !q.IncludeInactive}, p)
	if err != nil {
		return nil, err
	}
	return &ItemList{Items: items, Total: total, Page: p.Page, PerPage: p.PerPage}, nil
}

// GetItem returns an item with its variants. Inactive items are hidden unless
// includeInactive is set.
func (s *CatalogService) GetItem(ctx context.Context, id string, includeInactive bool) (*models.Item, error) {
	item, err := s.repo.GetItem(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !item.Active && !includeInactive {
		return nil, apperror.NotFound("item not found")
	}
	return item, nil
}

// CreateItem stores an item and its variants in one transaction.
func (s *CatalogService) CreateItem(ctx context.Context, in ItemInput) (*models.Item, error) {
	item := &models.Item{Active: true}
	if err := s.applyItem(item, in); err != nil {
		return nil, err
	}
	for i, v := range in.Variants {
		variant := models.ItemVariant{Kind: item.Kind}
		if err := s.applyVariant(&variant, v); err != nil {
			return nil, apperror.Validation("variant %d: %s", i+1, apperror.PublicMessage(err))
		}
		item.Variants = append(item.Variants, variant)
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("item created", zap.String("item_id", item.ID), zap.Int("variants", len(item.Variants)))
	return item, nil
}

// UpdateItem replaces the descriptive fields of an item.
func (s *CatalogService) UpdateItem(ctx context.Context, id string, in ItemInput) (*models.Item, error) {
	item, err := s.repo.GetItem(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if in.Slug == "" {
		in.Slug = item.Slug
	}
	if in.Kind == "" {
		in.Kind = item.Kind
	}
	if err := s.applyItem(item, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return s.repo.GetItem(ctx, id, true)
}

// DeleteItem soft-deletes an item together with its variants.
func (s *CatalogService) DeleteItem(ctx context.Context, id string) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repo.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("item deleted", zap.String("item_id", id))
	return nil
}

// AddVariant creates a variant of an existing item.
func (s *CatalogService) AddVariant(ctx context.Context, itemID string, in VariantInput) (*models.ItemVariant, error) {
	item, err := s.repo.GetItem(ctx, itemID, false)
	if err != nil {
		return nil, err
	}
	variant := &models.ItemVariant{ItemID: item.ID, Kind: item.Kind}
	if err := s.applyVariant(variant, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}

// UpdateVariant replaces the fields of a variant. The stock quantity is kept;
// AdjustStock is the way to change it.
func (s *CatalogService) UpdateVariant(ctx context.Context, itemID, variantID string, in VariantInput) (*models.ItemVariant, error) {
	variant, err := s.variantOf(ctx, itemID, variantID)
	if err != nil {
		return nil, err
	}
	in.Stock = variant.Stock.Quantity
	if err := s.applyVariant(variant, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVariant(ctx, variant); err != nil {
		return nil, err
	}
	return s.repo.GetVariant(ctx, variantID)
}

// AdjustStock adds delta to the stock of a variant. Stock never drops below 0.
func (s *CatalogService) AdjustStock(ctx context.Context, itemID, variantID string, delta int) (*models.ItemVariant, error) {
	if delta == 0 {
		return nil, apperror.Validation("delta must not be zero")
	}
	if _, err := s.variantOf(ctx, itemID, variantID); err != nil {
		return nil, err
	}
	if err := s.repo.AdjustStock(ctx, variantID, delta); err != nil {
		return nil, err
	}
	s.log.Info("stock adjusted", zap.String("variant_id", variantID), zap.Int("delta", delta))
	return s.repo.GetVariant(ctx, variantID)
}

// DeleteVariant soft-deletes a variant of an item.
func (s *CatalogService) DeleteVariant(ctx context.Context, itemID, variantID string) error {
	if _, err := s.variantOf(ctx, itemID, variantID); err != nil {
		return err
	}
	return s.repo.DeleteVariant(ctx, variantID)
}

func (s *CatalogService) variantOf(ctx context.Context, itemID, variantID string) (*models.ItemVariant, error) {
	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant.ItemID != itemID {
		return nil, apperror.NotFound("variant not found")
	}
	return variant, nil
}

func (s *CatalogService) applyItem(item *models.Item, in ItemInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperror.Validation("name is required")
	}
	kind := in.Kind
	if kind == "" {
		kind = models.KindCoffeeCapsule
	}
	if !kind.Valid() {
		return apperror.Validation("unsupported product kind '%s'", kind)
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return apperror.Validation("slug must contain letters or digits")
	}

	item.Name = name
	item.Slug = slug
	item.Description = in.Description
	item.Brand = strings.TrimSpace(in.Brand)
	item.Kind = kind
	if in.Active != nil {
		item.Active = *in.Active
	}
	return nil
}

func (s *CatalogService) applyVariant(variant *models.ItemVariant, in VariantInput) error {
	name := strings.TrimSpace(in.Name)
	sku := strings.ToUpper(strings.TrimSpace(in.SKU))
	switch {
	case name == "":
		return apperror.Validation("variant name is required")
	case sku == "":
		return apperror.Validation("sku is required")
	case !in.Price.IsPositive():
		return apperror.Validation("price must be greater than zero")
	case in.Stock < 0:
		return apperror.Validation("stock must not be negative")
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.currency
	}
	if currency != s.currency {
		return apperror.Validation("prices must be in %s", s.currency)
	}

	variant.Name = name
	variant.SKU = sku
	variant.Price = models.Money{Amount: in.Price.Round(2), Currency: currency}
	variant.Stock = models.Stock{Quantity: in.Stock, Untracked: in.Untracked}
	variant.MainImage = in.MainImage
	variant.Capsule = in.Capsule
	return nil
}

// Slugify lower-cases s and joins its runs of letters and digits with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r) && r < unicode.MaxASCII:
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
