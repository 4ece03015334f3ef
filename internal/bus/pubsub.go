package bus

import (
	"context"
	"log/slog"
	"sync"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // mem:// URLs
	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/checkout/internal/errors"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// metadataExchange carries the exchange name in pubsub metadata.
const metadataExchange = "exchange"

// PubSubSender sends to gocloud.dev topics opened as urlPrefix + exchange.
type PubSubSender struct {
	urlPrefix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubSender creates a PubSubSender. Topics are opened lazily.
func NewPubSubSender(urlPrefix string) *PubSubSender {
	return &PubSubSender{
		urlPrefix: urlPrefix,
		topics:    make(map[string]*pubsub.Topic),
	}
}

// AddTopic registers an already opened topic for exchange.
func (s *PubSubSender) AddTopic(exchange string, topic *pubsub.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[exchange] = topic
}

func (s *PubSubSender) topic(ctx context.Context, exchange string) (*pubsub.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.topics[exchange]; ok {
		return t, nil
	}

	t, err := pubsub.OpenTopic(ctx, s.urlPrefix+exchange)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open pubsub topic")
	}
	s.topics[exchange] = t
	return t, nil
}

// Send publishes msg and waits for the provider to accept it.
func (s *PubSubSender) Send(ctx context.Context, msg Message) error {
	t, err := s.topic(ctx, msg.Exchange)
	if err != nil {
		return err
	}

	metadata := msg.headersWithRoutingKey()
	metadata[metadataExchange] = msg.Exchange

	if err := t.Send(ctx, &pubsub.Message{Body: msg.Payload, Metadata: metadata}); err != nil {
		return apperrors.Wrap(err, "failed to send pubsub message")
	}
	return nil
}

// Close shuts down every opened topic.
func (s *PubSubSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for exchange, t := range s.topics {
		errs = append(errs, t.Shutdown(context.Background()))
		delete(s.topics, exchange)
	}
	return apperrors.Join(errs...)
}

// PubSubSubscriber receives from one gocloud.dev subscription per exchange.
type PubSubSubscriber struct {
	urlPrefix string
	exchanges []string
	logger    *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]*pubsub.Subscription
}

// NewPubSubSubscriber creates a subscriber over exchanges, opened as urlPrefix + exchange.
func NewPubSubSubscriber(urlPrefix string, exchanges []string, logger *slog.Logger) *PubSubSubscriber {
	return &PubSubSubscriber{
		urlPrefix:     urlPrefix,
		exchanges:     exchanges,
		logger:        logger,
		subscriptions: make(map[string]*pubsub.Subscription),
	}
}

// AddSubscription registers an already opened subscription for exchange.
func (s *PubSubSubscriber) AddSubscription(exchange string, sub *pubsub.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[exchange] = sub
}

func (s *PubSubSubscriber) subscription(ctx context.Context, exchange string) (*pubsub.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscriptions[exchange]; ok {
		return sub, nil
	}

	sub, err := pubsub.OpenSubscription(ctx, s.urlPrefix+exchange)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open pubsub subscription")
	}
	s.subscriptions[exchange] = sub
	return sub, nil
}

// Subscribe runs one receive loop per exchange and returns when ctx ends or
// any loop fails.
func (s *PubSubSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, exchange := range s.exchanges {
		sub, err := s.subscription(ctx, exchange)
		if err != nil {
			return err
		}

		g.Go(func() error {
			return s.receive(gctx, exchange, sub, handler)
		})
	}

	return g.Wait()
}

func (s *PubSubSubscriber) receive(
	ctx context.Context,
	exchange string,
	sub *pubsub.Subscription,
	handler Handler,
) error {
	for {
		pm, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Wrap(err, "failed to receive pubsub message")
		}

		if !handleWithRetry(ctx, handler, fromPubSubMessage(exchange, pm), s.logger) {
			if pm.Nackable() {
				pm.Nack()
			}
			return nil
		}
		pm.Ack()
	}
}

// Close shuts down every opened subscription.
func (s *PubSubSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for exchange, sub := range s.subscriptions {
		errs = append(errs, sub.Shutdown(context.Background()))
		delete(s.subscriptions, exchange)
	}
	return apperrors.Join(errs...)
}

func fromPubSubMessage(exchange string, pm *pubsub.Message) Message {
	headers := make(map[string]string, len(pm.Metadata))
	for k, v := range pm.Metadata {
		if k == metadataExchange {
			continue
		}
		headers[k] = v
	}

	return Message{
		Exchange:   exchange,
		RoutingKey: headers[outboxDomain.HeaderRoutingKey],
		Headers:    headers,
		Payload:    pm.Body,
	}
}
