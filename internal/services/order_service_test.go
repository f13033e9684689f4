package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caffemacao/internal/models"
	"caffemacao/internal/services"
	"caffemacao/pkg/apperror"
	"caffemacao/pkg/rabbitmq"
)

// placeOrder fills the cart of userID with quantity units of variant and
// checks it out.
func placeOrder(t *testing.T, env *testEnv, userID string, item *models.Item, variant *models.ItemVariant, quantity int) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := env.cart.AddItem(ctx, userID, services.AddItemInput{ItemID: item.ID, VariantID: variant.ID, Quantity: quantity})
	require.NoError(t, err)
	method := models.PaymentMethodCreditCard
	order, err := env.orderSvc.CreateOrder(ctx, userID, services.CreateOrderInput{
		PaymentMethod:   &method,
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)
	return order
}

func TestOrderService_CreateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "RIS-10", "4.50", 5)

	cart, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)

	order := placeOrder(t, env, customer.UserID, item, variant, 2)
	assert.Equal(t, cart.ID, order.ID)
	assert.Equal(t, cart.OrderNumber, order.OrderNumber)
	assert.Equal(t, models.OrderStatusProcessing, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.PaymentMethodCreditCard, order.PaymentMethod)
	assert.NotNil(t, order.OrderDate)
	assert.Equal(t, testAddress().Phone, order.Phone)
	assert.True(t, order.TotalAmount.Equal(dec("13.90")), order.TotalAmount.String())
	assert.Equal(t, 3, env.stockOf(t, variant.ID))
	assert.Equal(t, []string{rabbitmq.OrderCreated}, env.publisher.types())

	next, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, next.ID)
	assert.Empty(t, next.Items)
}

func TestOrderService_CreateOrderRequiresAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "LUN-10", "3.00", 5)

	_, err := env.cart.AddItem(ctx, customer.UserID, services.AddItemInput{ItemID: item.ID, VariantID: variant.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = env.orderSvc.CreateOrder(ctx, customer.UserID, services.CreateOrderInput{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "shipping address")

	cart, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, cart.OrderStatus)
	assert.Equal(t, 5, env.stockOf(t, variant.ID))
	assert.Empty(t, env.publisher.types())
}

func TestOrderService_CreateOrderIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, fv := env.seedVariant(t, "AAA-10", "2.00", 5)
	second, sv := env.seedVariant(t, "BBB-10", "2.00", 5)

	_, err := env.cart.AddItem(ctx, customer.UserID, services.AddItemInput{ItemID: first.ID, VariantID: fv.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.cart.AddItem(ctx, customer.UserID, services.AddItemInput{ItemID: second.ID, VariantID: sv.ID, Quantity: 4})
	require.NoError(t, err)

	// Someone else buys most of the second variant before checkout.
	_, err = env.catalog.AdjustStock(ctx, second.ID, sv.ID, -3)
	require.NoError(t, err)

	_, err = env.orderSvc.CreateOrder(ctx, customer.UserID, services.CreateOrderInput{ShippingAddress: testAddress()})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInsufficientStock))
	assert.Contains(t, err.Error(), "available 2, requested 4")

	assert.Equal(t, 5, env.stockOf(t, fv.ID))
	assert.Equal(t, 2, env.stockOf(t, sv.ID))
	cart, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, cart.OrderStatus)
	assert.True(t, cart.ShippingAddress.IsZero())
}

func TestOrderService_CreateOrderEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orderSvc.CreateOrder(ctx, customer.UserID, services.CreateOrderInput{ShippingAddress: testAddress()})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	_, err = env.orderSvc.CreateOrder(ctx, customer.UserID, services.CreateOrderInput{ShippingAddress: testAddress()})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestOrderService_CancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "KAZ-10", "4.00", 7)

	order := placeOrder(t, env, customer.UserID, item, variant, 3)
	assert.Equal(t, 4, env.stockOf(t, variant.ID))

	err := env.orderSvc.CancelOrder(ctx, stranger.UserID, order.ID, "")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	require.NoError(t, env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, ""))
	assert.Equal(t, 7, env.stockOf(t, variant.ID))

	cancelled, err := env.orderSvc.GetOrder(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, "Cancelled by customer", cancelled.CancellationReason)
	assert.Equal(t, []string{rabbitmq.OrderCreated, rabbitmq.OrderCancelled}, env.publisher.types())

	err = env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, "again")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, 7, env.stockOf(t, variant.ID))
}

// setUntracked flips the tracking flag of variant through the catalog.
func setUntracked(t *testing.T, env *testEnv, item *models.Item, variant *models.ItemVariant, untracked bool) {
	t.Helper()
	_, err := env.catalog.UpdateVariant(context.Background(), item.ID, variant.ID, services.VariantInput{
		Name:      variant.Name,
		SKU:       variant.SKU,
		Price:     variant.Price.Amount,
		Untracked: untracked,
	})
	require.NoError(t, err)
}

func TestOrderService_CancelUntrackedOrderKeepsStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "UNT-10", "4.00", 5)
	setUntracked(t, env, item, variant, true)

	order := placeOrder(t, env, customer.UserID, item, variant, 3)
	assert.False(t, order.Items[0].StockTaken)
	assert.Equal(t, 5, env.stockOf(t, variant.ID))

	require.NoError(t, env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, ""))
	assert.Equal(t, 5, env.stockOf(t, variant.ID))
}

func TestOrderService_CancelAfterTrackingFlagChanges(t *testing.T) {
	t.Run("tracked at checkout", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		item, variant := env.seedVariant(t, "TRK-10", "4.00", 5)

		order := placeOrder(t, env, customer.UserID, item, variant, 3)
		assert.True(t, order.Items[0].StockTaken)
		assert.Equal(t, 2, env.stockOf(t, variant.ID))

		setUntracked(t, env, item, variant, true)
		require.NoError(t, env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, ""))
		setUntracked(t, env, item, variant, false)

		assert.Equal(t, 5, env.stockOf(t, variant.ID))
	})

	t.Run("untracked at checkout", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		item, variant := env.seedVariant(t, "TRK-20", "4.00", 5)
		setUntracked(t, env, item, variant, true)

		order := placeOrder(t, env, customer.UserID, item, variant, 3)
		setUntracked(t, env, item, variant, false)
		require.NoError(t, env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, ""))

		assert.Equal(t, 5, env.stockOf(t, variant.ID))
	})
}

func TestOrderService_CancelShippedOrderFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "ROM-10", "4.00", 7)
	order := placeOrder(t, env, customer.UserID, item, variant, 1)

	_, err := env.orderSvc.UpdateOrder(ctx, admin, order.ID, map[string]json.RawMessage{
		"orderStatus": json.RawMessage(`"Shipped"`),
	})
	require.NoError(t, err)

	err = env.orderSvc.CancelOrder(ctx, customer.UserID, order.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "no longer cancellable")
	assert.Equal(t, 6, env.stockOf(t, variant.ID))
}

func TestOrderService_CancelCartKeepsStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "LIV-10", "4.00", 3)

	cart, err := env.cart.AddItem(ctx, customer.UserID, services.AddItemInput{ItemID: item.ID, VariantID: variant.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, env.orderSvc.CancelOrder(ctx, customer.UserID, cart.ID, "changed my mind"))
	assert.Equal(t, 3, env.stockOf(t, variant.ID))

	fresh, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, fresh.ID)
}

func TestOrderService_ListOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "ENV-10", "1.00", 100)

	mine1 := placeOrder(t, env, customer.UserID, item, variant, 1)
	mine2 := placeOrder(t, env, customer.UserID, item, variant, 1)
	theirs := placeOrder(t, env, stranger.UserID, item, variant, 1)
	_, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)

	own, err := env.orderSvc.ListOrders(ctx, customer, services.OrderFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, own.Total)
	assert.Equal(t, 10, own.PerPage)
	ids := []string{own.Orders[0].ID, own.Orders[1].ID}
	assert.ElementsMatch(t, []string{mine1.ID, mine2.ID}, ids)

	all, err := env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{PerPage: 100})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
	assert.Equal(t, 25, all.PerPage)

	carts, err := env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{OrderStatus: "Pending"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, carts.Total)
	assert.Equal(t, 20, carts.PerPage)

	byNumber, err := env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{OrderNumber: theirs.OrderNumber})
	require.NoError(t, err)
	require.Len(t, byNumber.Orders, 1)
	assert.Equal(t, theirs.ID, byNumber.Orders[0].ID)

	regex, err := env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{
		OrderNumber: "-0000[12]$", OrderStatus: "^Proc", Match: services.MatchRegex, PerPage: 1, Page: 2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, regex.Total)
	assert.Len(t, regex.Orders, 1)

	_, err = env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{OrderStatus: "Lost"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{OrderNumber: "(", Match: services.MatchRegex})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = env.orderSvc.ListOrders(ctx, admin, services.OrderFilter{Match: "fuzzy"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestOrderService_GetOrderMasksOtherUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "NAP-10", "1.00", 10)
	order := placeOrder(t, env, customer.UserID, item, variant, 1)

	_, err := env.orderSvc.GetOrder(ctx, stranger, order.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	got, err := env.orderSvc.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestOrderService_UpdateOrderRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "VIV-10", "1.00", 10)
	order := placeOrder(t, env, customer.UserID, item, variant, 1)

	_, err := env.orderSvc.UpdateOrder(ctx, admin, order.ID, map[string]json.RawMessage{
		"hackerField": json.RawMessage(`1`),
		"notes":       json.RawMessage(`"ok"`),
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "hackerField")

	unchanged, err := env.orderSvc.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Revision, unchanged.Revision)
	assert.Empty(t, unchanged.Notes)

	_, err = env.orderSvc.UpdateOrder(ctx, customer, order.ID, map[string]json.RawMessage{"notes": json.RawMessage(`"x"`)})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestOrderService_UpdateOrderMergesAndRecomputes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "COS-10", "5.00", 10)
	order := placeOrder(t, env, customer.UserID, item, variant, 2)

	updated, err := env.orderSvc.UpdateOrder(ctx, admin, order.ID, map[string]json.RawMessage{
		"shippingAddress": json.RawMessage(`{"city":"Taipa"}`),
		"shippingCost":    json.RawMessage(`{"amount":"2.00"}`),
		"discountCode":    json.RawMessage(`"WELCOME"`),
		"discountAmount":  json.RawMessage(`"1.50"`),
		"paymentStatus":   json.RawMessage(`"Paid"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Taipa", updated.ShippingAddress.City)
	assert.Equal(t, testAddress().Street, updated.ShippingAddress.Street)
	assert.Equal(t, "EUR", updated.ShippingCost.Currency)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	// 10.00 + 2.00 - 1.50
	assert.True(t, updated.TotalAmount.Equal(dec("10.50")), updated.TotalAmount.String())

	cases := map[string]string{
		"orderStatus":     `"Pending"`,
		"paymentMethod":   `"Bitcoin"`,
		"shippingAddress": `{"planet":"Mars"}`,
		"discountAmount":  `"100"`,
	}
	for field, value := range cases {
		_, err := env.orderSvc.UpdateOrder(ctx, admin, order.ID, map[string]json.RawMessage{field: json.RawMessage(value)})
		assert.True(t, apperror.Is(err, apperror.KindValidation), field)
	}
}

func TestOrderService_UpdateOrderCannotPromoteCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cart, err := env.cart.GetCart(ctx, customer.UserID)
	require.NoError(t, err)

	_, err = env.orderSvc.UpdateOrder(ctx, admin, cart.ID, map[string]json.RawMessage{
		"orderStatus": json.RawMessage(`"Processing"`),
	})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestOrderService_UpdatePaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item, variant := env.seedVariant(t, "IND-10", "1.00", 10)
	order := placeOrder(t, env, customer.UserID, item, variant, 1)

	for _, status := range []models.PaymentStatus{models.PaymentStatusRefunded, models.PaymentStatusPaid} {
		updated, err := env.orderSvc.UpdatePaymentStatus(ctx, admin, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.PaymentStatus)
	}

	_, err := env.orderSvc.UpdatePaymentStatus(ctx, admin, order.ID, "Stolen")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = env.orderSvc.UpdatePaymentStatus(ctx, customer, order.ID, models.PaymentStatusPaid)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	_, err = env.orderSvc.UpdatePaymentStatus(ctx, admin, "missing", models.PaymentStatusPaid)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
