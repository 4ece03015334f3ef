package app

import (
	"fmt"

	"github.com/allisson/checkout/internal/bus"
	checkoutConsumer "github.com/allisson/checkout/internal/checkout/consumer"
	inventoryConsumer "github.com/allisson/checkout/internal/inventory/consumer"
)

// BusSender returns the message bus sender used by the outbox relay.
func (c *Container) BusSender() (bus.Sender, error) {
	var err error
	c.busSenderInit.Do(func() {
		c.busSender, err = bus.NewSender(c.busConfig())
		if err != nil {
			err = fmt.Errorf("failed to create bus sender: %w", err)
			c.initErrors["busSender"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["busSender"]; exists {
		return nil, storedErr
	}
	return c.busSender, nil
}

// BusSubscriber returns the message bus subscriber for the configured topics.
func (c *Container) BusSubscriber() (bus.Subscriber, error) {
	var err error
	c.busSubscriberInit.Do(func() {
		c.busSubscriber, err = bus.NewSubscriber(c.busConfig(), c.Logger())
		if err != nil {
			err = fmt.Errorf("failed to create bus subscriber: %w", err)
			c.initErrors["busSubscriber"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["busSubscriber"]; exists {
		return nil, storedErr
	}
	return c.busSubscriber, nil
}

// Router returns the consumer router with the inventory and order payment
// handlers registered.
func (c *Container) Router() (*bus.Router, error) {
	var err error
	c.routerInit.Do(func() {
		c.router, err = c.initRouter()
		if err != nil {
			c.initErrors["router"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["router"]; exists {
		return nil, storedErr
	}
	return c.router, nil
}

func (c *Container) busConfig() bus.Config {
	return bus.Config{
		Driver:          c.config.BusDriver,
		KafkaBrokers:    c.config.KafkaBrokers(),
		RedisAddr:       c.config.BusRedisAddr,
		PubSubURLPrefix: c.config.BusPubSubURLPrefix,
		ConsumerName:    c.config.BusConsumerName,
		Topics:          c.config.ConsumerTopics(),
	}
}

// initRouter creates the consumer router and registers every handler.
func (c *Container) initRouter() (*bus.Router, error) {
	ledger, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for router: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for router: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for router: %w", err)
	}

	reservations, err := c.ReservationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation use case for router: %w", err)
	}

	payments, err := c.OrderPaymentUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get order payment use case for router: %w", err)
	}

	router := bus.NewRouter(c.config.BusConsumerName, ledger, txManager, businessMetrics, c.Logger())
	inventoryConsumer.NewHandler(reservations).Register(router)
	checkoutConsumer.NewHandler(payments).Register(router)
	return router, nil
}
