package main

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"caffemacao/internal/models"
	"caffemacao/internal/services"
)

// starterCatalog is loaded into an empty catalog when SEED_CATALOG is set.
var starterCatalog = []services.ItemInput{
	{
		Name:        "Ristretto Intenso",
		Description: "Short, dense and full bodied with notes of cocoa.",
		Brand:       "Caffè Macao",
		Variants: []services.VariantInput{
			{Name: "Pack of 10", SKU: "RIS-10", Price: decimal.RequireFromString("4.20"), Stock: 120, Capsule: models.CapsuleSpec{Intensity: 12, CapsulesPerPack: 10, Compatibility: "Nespresso Original"}},
			{Name: "Pack of 50", SKU: "RIS-50", Price: decimal.RequireFromString("19.50"), Stock: 40, Capsule: models.CapsuleSpec{Intensity: 12, CapsulesPerPack: 50, Compatibility: "Nespresso Original"}},
		},
	},
	{
		Name:        "Lungo Suave",
		Description: "A long cup with cereal and honey notes.",
		Brand:       "Caffè Macao",
		Variants: []services.VariantInput{
			{Name: "Pack of 10", SKU: "LUN-10", Price: decimal.RequireFromString("3.90"), Stock: 200, Capsule: models.CapsuleSpec{Intensity: 6, CapsulesPerPack: 10, Compatibility: "Nespresso Original"}},
		},
	},
	{
		Name:        "Decaffeinato",
		Description: "All the aroma, none of the caffeine.",
		Brand:       "Caffè Macao",
		Variants: []services.VariantInput{
			{Name: "Pack of 10", SKU: "DEC-10", Price: decimal.RequireFromString("4.50"), Stock: 80, Capsule: models.CapsuleSpec{Intensity: 7, CapsulesPerPack: 10, Compatibility: "Nespresso Original"}},
		},
	},
}

// seedCatalog populates an empty catalog. A catalog that already has items,
// active or not, is left untouched.
func seedCatalog(ctx context.Context, catalog *services.CatalogService, log *zap.Logger) error {
	existing, err := catalog.ListItems(ctx, services.ItemQuery{IncludeInactive: true, PerPage: 1})
	if err != nil {
		return err
	}
	if existing.Total > 0 {
		log.Info("catalog already seeded", zap.Int64("items", existing.Total))
		return nil
	}

	for _, in := range starterCatalog {
		item, err := catalog.CreateItem(ctx, in)
		if err != nil {
			return err
		}
		log.Info("seeded item", zap.String("item_id", item.ID), zap.String("slug", item.Slug))
	}
	return nil
}
