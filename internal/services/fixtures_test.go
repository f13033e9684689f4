package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"caffemacao/internal/database"
	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/internal/services"
	"caffemacao/pkg/rabbitmq"
)

const placeholderURL = "https://img.example.com/placeholder.png"

// recordingPublisher captures published order events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []rabbitmq.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event rabbitmq.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	items     *repositories.GORMItemRepository
	orders    *repositories.GORMOrderRepository
	catalog   *services.CatalogService
	reviews   *services.ReviewService
	cart      *services.CartService
	orderSvc  *services.OrderService
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zaptest.NewLogger(t)
	txm := repositories.NewTxManager(db)
	items := repositories.NewGORMItemRepository(db)
	orders := repositories.NewGORMOrderRepository(db)
	reviews := repositories.NewGORMReviewRepository(db)
	publisher := &recordingPublisher{}

	return &testEnv{
		items:   items,
		orders:  orders,
		catalog: services.NewCatalogService(items, txm, "EUR", log),
		reviews: services.NewReviewService(reviews, items, txm, log),
		cart: services.NewCartService(orders, items, services.CartConfig{
			Currency:            "EUR",
			ShippingCost:        decimal.RequireFromString("4.90"),
			PlaceholderImageURL: placeholderURL,
		}, log),
		orderSvc:  services.NewOrderService(txm, orders, items, publisher, log),
		publisher: publisher,
	}
}

// seedVariant creates an active item with one variant.
func (e *testEnv) seedVariant(t *testing.T, sku string, price string, stock int) (*models.Item, *models.ItemVariant) {
	t.Helper()
	item, err := e.catalog.CreateItem(context.Background(), services.ItemInput{
		Name:  "Capsules " + sku,
		Brand: "Macao",
		Variants: []services.VariantInput{{
			Name:  "Pack of 10",
			SKU:   sku,
			Price: decimal.RequireFromString(price),
			Stock: stock,
		}},
	})
	require.NoError(t, err)
	require.Len(t, item.Variants, 1)
	return item, &item.Variants[0]
}

func (e *testEnv) stockOf(t *testing.T, variantID string) int {
	t.Helper()
	v, err := e.items.GetVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock.Quantity
}

func testAddress() *models.Address {
	return &models.Address{
		FullName:   "Rita Lopes",
		Street:     "Rua Central 10",
		City:       "Macau",
		PostalCode: "999078",
		Country:    "Macau SAR",
		Phone:      "+853 2800 0000",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	customer = services.Caller{UserID: "user-1", Role: models.RoleUser}
	stranger = services.Caller{UserID: "user-2", Role: models.RoleUser}
	admin    = services.Caller{UserID: "admin-1", Role: models.RoleAdmin}
)
