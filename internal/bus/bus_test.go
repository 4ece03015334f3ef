package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	"github.com/allisson/checkout/internal/testutil"
)

func TestMessage_Key(t *testing.T) {
	msg := Message{Headers: map[string]string{outboxDomain.HeaderMessageID: "m-1"}}
	assert.Equal(t, "m-1", msg.Key())

	msg.Headers[outboxDomain.HeaderAggregateID] = "order-1"
	assert.Equal(t, "order-1", msg.Key())
}

func TestKafkaMessageConversion(t *testing.T) {
	msg := Message{
		Exchange:   "orders",
		RoutingKey: "order.paid",
		Headers: map[string]string{
			outboxDomain.HeaderMessageID:   "m-1",
			outboxDomain.HeaderAggregateID: "order-1",
			"traceparent":                  "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		},
		Payload: []byte(`{"order_id":"order-1"}`),
	}

	km := toKafkaMessage(msg)
	assert.Equal(t, "orders", km.Topic)
	assert.Equal(t, []byte("order-1"), km.Key)
	assert.Len(t, km.Headers, 4)

	back := fromKafkaMessage(km)
	assert.Equal(t, "orders", back.Exchange)
	assert.Equal(t, "order.paid", back.RoutingKey)
	assert.Equal(t, msg.Payload, back.Payload)
	assert.Equal(t, "m-1", back.ID())
	assert.Equal(t, msg.Headers["traceparent"], back.Headers["traceparent"])
}

func TestFromKafkaMessage_NoHeaders(t *testing.T) {
	back := fromKafkaMessage(kafka.Message{Topic: "inventory", Value: []byte(`{}`)})
	assert.Equal(t, "inventory", back.Exchange)
	assert.Empty(t, back.RoutingKey)
	assert.NotNil(t, back.Headers)
}

func TestFromStreamEntry(t *testing.T) {
	entry := rueidis.XRangeEntry{
		ID: "1700000000000-0",
		FieldValues: map[string]string{
			fieldRoutingKey: "inventory.reserve.request",
			fieldHeaders:    `{"message_id":"m-9","routing_key":"inventory.reserve.request"}`,
			fieldPayload:    `{"order_id":"o-1"}`,
		},
	}

	msg, err := fromStreamEntry("inventory", entry)
	require.NoError(t, err)
	assert.Equal(t, "inventory", msg.Exchange)
	assert.Equal(t, "inventory.reserve.request", msg.RoutingKey)
	assert.Equal(t, "m-9", msg.ID())
	assert.JSONEq(t, `{"order_id":"o-1"}`, string(msg.Payload))
}

func TestFromStreamEntry_MalformedHeaders(t *testing.T) {
	_, err := fromStreamEntry("inventory", rueidis.XRangeEntry{
		FieldValues: map[string]string{fieldHeaders: "{not json"},
	})
	assert.Error(t, err)
}

func TestHandleWithRetry(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		handler := func(context.Context, Message) error {
			calls++
			if calls < 2 {
				return errors.New("temporary")
			}
			return nil
		}

		ok := handleWithRetry(context.Background(), handler, Message{}, testutil.DiscardLogger())
		assert.True(t, ok)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up when context ends", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		handler := func(context.Context, Message) error { return errors.New("down") }

		ok := handleWithRetry(ctx, handler, Message{}, testutil.DiscardLogger())
		assert.False(t, ok)
	})
}

func TestFactories_UnknownDriver(t *testing.T) {
	_, err := NewSender(Config{Driver: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewSubscriber(Config{Driver: "carrier-pigeon"}, testutil.DiscardLogger())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestFactories_KafkaAndPubSub(t *testing.T) {
	sender, err := NewSender(Config{Driver: DriverKafka, KafkaBrokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.IsType(t, &KafkaSender{}, sender)
	assert.NoError(t, sender.Close())

	sender, err = NewSender(Config{Driver: DriverPubSub, PubSubURLPrefix: "mem://"})
	require.NoError(t, err)
	assert.IsType(t, &PubSubSender{}, sender)
	assert.NoError(t, sender.Close())

	subscriber, err := NewSubscriber(Config{
		Driver:       DriverKafka,
		KafkaBrokers: []string{"localhost:9092"},
		ConsumerName: "checkout",
		Topics:       []string{"orders"},
	}, testutil.DiscardLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaSubscriber{}, subscriber)
	assert.NoError(t, subscriber.Close())
}
