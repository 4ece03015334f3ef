package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/checkout/internal/errors"
)

func TestNewMessage(t *testing.T) {
	headers := map[string]string{HeaderAggregateID: "order-1"}

	msg, err := NewMessage("orders", "order.checkout.started", headers, map[string]any{"order_id": "order-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "orders", msg.Exchange)
	assert.Equal(t, "order.checkout.started", msg.RoutingKey)
	assert.Equal(t, msg.ID.String(), msg.Headers[HeaderMessageID])
	assert.Equal(t, "order.checkout.started", msg.Headers[HeaderRoutingKey])
	assert.Equal(t, "order-1", msg.Headers[HeaderAggregateID])
	assert.Equal(t, ContentTypeJSON, msg.Headers[HeaderContentType])
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(msg.Payload))
	assert.Nil(t, msg.PublishedAt)
	assert.Zero(t, msg.Attempts)
	assert.False(t, msg.CreatedAt.IsZero())

	// caller's map is not mutated
	assert.Len(t, headers, 1)
}

func TestNewMessage_SerializationError(t *testing.T) {
	msg, err := NewMessage("orders", "order.checkout.started", nil, map[string]any{"bad": make(chan int)})
	assert.Nil(t, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal outbox payload")

	var unsupported *json.UnsupportedTypeError
	assert.True(t, apperrors.As(err, &unsupported))
}

func TestMessage_Bookkeeping(t *testing.T) {
	msg, err := NewMessage("inventory", "inventory.reserve.request", nil, struct{}{})
	require.NoError(t, err)

	msg.RecordFailedAttempt()
	assert.Equal(t, 1, msg.Attempts)
	assert.False(t, msg.IsPublished())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200))
	msg.MarkPublished(at)
	assert.True(t, msg.IsPublished())
	assert.Equal(t, at.UTC(), *msg.PublishedAt)
	assert.Equal(t, 1, msg.Attempts)
}
