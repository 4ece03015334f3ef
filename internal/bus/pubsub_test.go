package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub/mempubsub"

	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	"github.com/allisson/checkout/internal/testutil"
)

func TestPubSub_SendAndSubscribe(t *testing.T) {
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)

	sender := NewPubSubSender("mem://")
	sender.AddTopic("orders", topic)

	subscriber := NewPubSubSubscriber("mem://", []string{"orders"}, testutil.DiscardLogger())
	subscriber.AddSubscription("orders", sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	err := sender.Send(ctx, Message{
		Exchange:   "orders",
		RoutingKey: "order.checkout.started",
		Headers:    map[string]string{outboxDomain.HeaderMessageID: "m-1"},
		Payload:    []byte(`{"order_id":"o-1"}`),
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "orders", msg.Exchange)
		assert.Equal(t, "order.checkout.started", msg.RoutingKey)
		assert.Equal(t, "m-1", msg.ID())
		assert.NotContains(t, msg.Headers, metadataExchange)
		assert.JSONEq(t, `{"order_id":"o-1"}`, string(msg.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("message was not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, subscriber.Close())
	assert.NoError(t, sender.Close())
}

func TestPubSubSender_OpensTopicByURL(t *testing.T) {
	sender := NewPubSubSender("mem://")

	err := sender.Send(context.Background(), Message{Exchange: "payments-url-test", RoutingKey: "payment.event.x"})
	require.NoError(t, err)
	assert.Len(t, sender.topics, 1)
	assert.NoError(t, sender.Close())
	assert.Empty(t, sender.topics)
}
