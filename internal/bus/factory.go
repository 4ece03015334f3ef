package bus

import (
	"fmt"
	"log/slog"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Config selects and configures a bus driver.
type Config struct {
	Driver          string
	KafkaBrokers    []string
	RedisAddr       string
	PubSubURLPrefix string
	// ConsumerName is the consumer group; it is also used as the Redis consumer name.
	ConsumerName string
	// Topics lists the exchanges a Subscriber reads.
	Topics []string
}

// NewSender builds the Sender for cfg.Driver.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaSender(cfg.KafkaBrokers), nil
	case DriverRedis:
		client, err := NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedisSender(client), nil
	case DriverPubSub:
		return NewPubSubSender(cfg.PubSubURLPrefix), nil
	default:
		return nil, apperrors.Wrap(ErrUnknownDriver, fmt.Sprintf("driver %q", cfg.Driver))
	}
}

// NewSubscriber builds the Subscriber for cfg.Driver.
func NewSubscriber(cfg Config, logger *slog.Logger) (Subscriber, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaSubscriber(cfg.KafkaBrokers, cfg.ConsumerName, cfg.Topics, logger), nil
	case DriverRedis:
		client, err := NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedisSubscriber(client, cfg.ConsumerName, cfg.ConsumerName, cfg.Topics, logger), nil
	case DriverPubSub:
		return NewPubSubSubscriber(cfg.PubSubURLPrefix, cfg.Topics, logger), nil
	default:
		return nil, apperrors.Wrap(ErrUnknownDriver, fmt.Sprintf("driver %q", cfg.Driver))
	}
}
