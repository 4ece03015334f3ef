package bus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/allisson/checkout/internal/errors"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// KafkaSender writes every exchange to the topic of the same name, keyed by aggregate.
type KafkaSender struct {
	writer *kafka.Writer
}

// NewKafkaSender creates a KafkaSender for the given brokers.
func NewKafkaSender(brokers []string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Send writes msg synchronously; it returns once the brokers acknowledged it.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	if err := s.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		return apperrors.Wrap(err, "failed to write kafka message")
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// KafkaSubscriber reads a set of topics as one consumer group.
type KafkaSubscriber struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewKafkaSubscriber creates a consumer group reader over topics.
func NewKafkaSubscriber(brokers []string, groupID string, topics []string, logger *slog.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			GroupTopics:    topics,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: 0,
		}),
		logger: logger,
	}
}

// Subscribe fetches, handles and commits messages one at a time. The offset is
// committed only after the handler succeeded.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	for {
		km, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return apperrors.Wrap(err, "failed to fetch kafka message")
		}

		if !handleWithRetry(ctx, handler, fromKafkaMessage(km), s.logger) {
			return nil
		}

		if err := s.reader.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Wrap(err, "failed to commit kafka message")
		}
	}
}

// Close closes the reader and leaves the group.
func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}

func toKafkaMessage(msg Message) kafka.Message {
	headers := msg.headersWithRoutingKey()
	kh := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   msg.Exchange,
		Key:     []byte(msg.Key()),
		Value:   msg.Payload,
		Headers: kh,
		Time:    time.Now().UTC(),
	}
}

func fromKafkaMessage(km kafka.Message) Message {
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}

	return Message{
		Exchange:   km.Topic,
		RoutingKey: headers[outboxDomain.HeaderRoutingKey],
		Headers:    headers,
		Payload:    km.Value,
	}
}
