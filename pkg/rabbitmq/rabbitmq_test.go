package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderEvent(t *testing.T) {
	body := []byte(`{
		"eventId": "evt-1",
		"type": "order.created",
		"orderId": "o-1",
		"orderNumber": "ORD-2026-00007",
		"userId": "u-1",
		"orderStatus": "Processing",
		"paymentStatus": "Pending",
		"totalAmount": "19.50",
		"currency": "EUR",
		"occurredAt": "2026-03-01T10:00:00Z"
	}`)

	event, err := DecodeOrderEvent(body)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, event.Type)
	assert.Equal(t, "ORD-2026-00007", event.OrderNumber)
	assert.True(t, event.TotalAmount.Equal(decimal.RequireFromString("19.5")))
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), event.OccurredAt)
}

func TestDecodeOrderEvent_Rejects(t *testing.T) {
	_, err := DecodeOrderEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeOrderEvent([]byte(`{"type":"order.created"}`))
	assert.Error(t, err)
}

func TestOrderEvent_JSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(OrderEvent{ID: "e", Type: OrderCancelled, OrderID: "o", TotalAmount: decimal.NewFromInt(3)})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "e", fields["eventId"])
	assert.Equal(t, "order.cancelled", fields["type"])
	assert.Equal(t, "o", fields["orderId"])
	assert.Equal(t, "3", fields["totalAmount"])
}
