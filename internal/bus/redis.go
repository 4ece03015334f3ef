package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/rueidis"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Stream entry field names.
const (
	fieldRoutingKey = "routing_key"
	fieldHeaders    = "headers"
	fieldPayload    = "payload"
)

// redisBlockMillis is how long one XREADGROUP call blocks waiting for entries.
const redisBlockMillis = 2000

// NewRedisClient connects to a single Redis node.
func NewRedisClient(addr string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to redis")
	}
	return client, nil
}

// RedisSender appends every message to the stream named after its exchange.
type RedisSender struct {
	client rueidis.Client
}

// NewRedisSender creates a RedisSender on top of client.
func NewRedisSender(client rueidis.Client) *RedisSender {
	return &RedisSender{client: client}
}

// Send runs XADD on the exchange stream.
func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	headersJSON, err := json.Marshal(msg.headersWithRoutingKey())
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message headers")
	}

	cmd := s.client.B().Xadd().Key(msg.Exchange).Id("*").
		FieldValue().
		FieldValue(fieldRoutingKey, msg.RoutingKey).
		FieldValue(fieldHeaders, string(headersJSON)).
		FieldValue(fieldPayload, string(msg.Payload)).
		Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return apperrors.Wrap(err, "failed to add redis stream entry")
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSender) Close() error {
	s.client.Close()
	return nil
}

// redisReadCount is the maximum number of entries one XREADGROUP call returns.
const redisReadCount = 100

// streamGroup is the consumer group subset of the Redis stream commands.
type streamGroup interface {
	createGroup(ctx context.Context, stream, group string) error
	// readGroup runs XREADGROUP. block only applies to the ">" id.
	readGroup(ctx context.Context, group, consumer string, streams, ids []string, block bool) (map[string][]rueidis.XRangeEntry, error)
	ack(ctx context.Context, stream, group, id string) error
}

type rueidisStreams struct {
	client rueidis.Client
}

func (r rueidisStreams) createGroup(ctx context.Context, stream, group string) error {
	cmd := r.client.B().XgroupCreate().Key(stream).Group(group).Id("0").Mkstream().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (r rueidisStreams) readGroup(
	ctx context.Context,
	group, consumer string,
	streams, ids []string,
	block bool,
) (map[string][]rueidis.XRangeEntry, error) {
	var cmd rueidis.Completed
	if block {
		cmd = r.client.B().Xreadgroup().Group(group, consumer).Count(redisReadCount).
			Block(redisBlockMillis).Streams().Key(streams...).Id(ids...).Build()
	} else {
		cmd = r.client.B().Xreadgroup().Group(group, consumer).Count(redisReadCount).
			Streams().Key(streams...).Id(ids...).Build()
	}

	result, err := r.client.Do(ctx, cmd).AsXRead()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	return result, err
}

func (r rueidisStreams) ack(ctx context.Context, stream, group, id string) error {
	return r.client.Do(ctx, r.client.B().Xack().Key(stream).Group(group).Id(id).Build()).Error()
}

// RedisSubscriber reads exchange streams through a consumer group.
type RedisSubscriber struct {
	client   rueidis.Client
	redis    streamGroup
	group    string
	consumer string
	streams  []string
	logger   *slog.Logger
}

// NewRedisSubscriber creates a RedisSubscriber. The consumer group is named
// after group and created on first Subscribe. The consumer name must be
// stable across restarts so entries left pending by a crash are found again.
func NewRedisSubscriber(
	client rueidis.Client,
	group, consumer string,
	streams []string,
	logger *slog.Logger,
) *RedisSubscriber {
	return &RedisSubscriber{
		client:   client,
		redis:    rueidisStreams{client: client},
		group:    group,
		consumer: consumer,
		streams:  streams,
		logger:   logger,
	}
}

// Subscribe first replays the entries this consumer read but never
// acknowledged, then reads new entries. Each entry is acknowledged after the
// handler succeeds.
func (s *RedisSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	for _, stream := range s.streams {
		if err := s.redis.createGroup(ctx, stream, s.group); err != nil {
			return apperrors.Wrap(err, "failed to create redis consumer group")
		}
	}

	for _, stream := range s.streams {
		done, err := s.drainPending(ctx, stream, handler)
		if err != nil || done {
			return err
		}
	}

	ids := make([]string, len(s.streams))
	for i := range ids {
		ids[i] = ">"
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := s.redis.readGroup(ctx, s.group, s.consumer, s.streams, ids, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.Wrap(err, "failed to read redis streams")
		}

		for stream, entries := range result {
			for _, entry := range entries {
				if !s.process(ctx, stream, entry, handler) {
					return nil
				}
			}
		}
	}
}

// drainPending walks the pending entries list of this consumer on stream.
// done is true when ctx ended while draining.
func (s *RedisSubscriber) drainPending(ctx context.Context, stream string, handler Handler) (done bool, err error) {
	lastID := "0"
	for {
		if ctx.Err() != nil {
			return true, nil
		}

		result, err := s.redis.readGroup(ctx, s.group, s.consumer, []string{stream}, []string{lastID}, false)
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, apperrors.Wrap(err, "failed to read pending redis entries")
		}

		entries := result[stream]
		if len(entries) == 0 {
			return false, nil
		}

		s.logger.Info("replaying pending stream entries",
			slog.String("stream", stream),
			slog.Int("count", len(entries)),
		)
		for _, entry := range entries {
			if !s.process(ctx, stream, entry, handler) {
				return true, nil
			}
			lastID = entry.ID
		}
	}
}

// process handles and acknowledges one entry. Malformed entries are
// acknowledged and dropped. It returns false when ctx ended first.
func (s *RedisSubscriber) process(ctx context.Context, stream string, entry rueidis.XRangeEntry, handler Handler) bool {
	msg, err := fromStreamEntry(stream, entry)
	if err != nil {
		s.logger.Error("dropping malformed stream entry",
			slog.String("stream", stream),
			slog.String("entry_id", entry.ID),
			slog.Any("error", err),
		)
	} else if !handleWithRetry(ctx, handler, msg, s.logger) {
		return false
	}

	if err := s.redis.ack(ctx, stream, s.group, entry.ID); err != nil {
		s.logger.Error("failed to ack stream entry",
			slog.String("stream", stream),
			slog.String("entry_id", entry.ID),
			slog.Any("error", err),
		)
	}
	return true
}

// Close closes the underlying client.
func (s *RedisSubscriber) Close() error {
	s.client.Close()
	return nil
}

func fromStreamEntry(stream string, entry rueidis.XRangeEntry) (Message, error) {
	msg := Message{
		Exchange:   stream,
		RoutingKey: entry.FieldValues[fieldRoutingKey],
		Payload:    []byte(entry.FieldValues[fieldPayload]),
	}

	if raw := entry.FieldValues[fieldHeaders]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Headers); err != nil {
			return Message{}, apperrors.Wrap(err, "failed to unmarshal stream entry headers")
		}
	}
	if msg.Headers == nil {
		msg.Headers = map[string]string{}
	}

	return msg, nil
}
