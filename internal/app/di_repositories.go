package app

import (
	"database/sql"
	"fmt"

	auditRepository "github.com/allisson/checkout/internal/audit/repository"
	auditUsecase "github.com/allisson/checkout/internal/audit/usecase"
	checkoutRepository "github.com/allisson/checkout/internal/checkout/repository"
	checkoutUsecase "github.com/allisson/checkout/internal/checkout/usecase"
	"github.com/allisson/checkout/internal/database"
	inventoryRepository "github.com/allisson/checkout/internal/inventory/repository"
	inventoryUsecase "github.com/allisson/checkout/internal/inventory/usecase"
	ledgerRepository "github.com/allisson/checkout/internal/ledger/repository"
	ledgerUsecase "github.com/allisson/checkout/internal/ledger/usecase"
	outboxRepository "github.com/allisson/checkout/internal/outbox/repository"
	outboxUsecase "github.com/allisson/checkout/internal/outbox/usecase"
)

// OutboxRepository returns the outbox repository based on database driver.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxRepository, error) {
	var err error
	c.outboxRepositoryInit.Do(func() {
		c.outboxRepository, err = byDriver(c, "outbox repository",
			func(db *sql.DB) outboxUsecase.OutboxRepository {
				return outboxRepository.NewPostgreSQLOutboxRepository(db)
			},
			func(db *sql.DB) outboxUsecase.OutboxRepository { return outboxRepository.NewMySQLOutboxRepository(db) },
		)
		if err != nil {
			c.initErrors["outboxRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepository"]; exists {
		return nil, storedErr
	}
	return c.outboxRepository, nil
}

// LedgerRepository returns the processed-event ledger repository based on database driver.
func (c *Container) LedgerRepository() (ledgerUsecase.LedgerRepository, error) {
	var err error
	c.ledgerRepositoryInit.Do(func() {
		c.ledgerRepository, err = byDriver(c, "ledger repository",
			func(db *sql.DB) ledgerUsecase.LedgerRepository {
				return ledgerRepository.NewPostgreSQLLedgerRepository(db)
			},
			func(db *sql.DB) ledgerUsecase.LedgerRepository { return ledgerRepository.NewMySQLLedgerRepository(db) },
		)
		if err != nil {
			c.initErrors["ledgerRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerRepository"]; exists {
		return nil, storedErr
	}
	return c.ledgerRepository, nil
}

// AuditEventRepository returns the audit event repository based on database driver.
func (c *Container) AuditEventRepository() (auditUsecase.AuditEventRepository, error) {
	var err error
	c.auditEventRepositoryInit.Do(func() {
		c.auditEventRepository, err = byDriver(c, "audit event repository",
			func(db *sql.DB) auditUsecase.AuditEventRepository {
				return auditRepository.NewPostgreSQLAuditEventRepository(db)
			},
			func(db *sql.DB) auditUsecase.AuditEventRepository {
				return auditRepository.NewMySQLAuditEventRepository(db)
			},
		)
		if err != nil {
			c.initErrors["auditEventRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditEventRepository"]; exists {
		return nil, storedErr
	}
	return c.auditEventRepository, nil
}

// StockRepository returns the inventory stock adjuster based on database driver.
func (c *Container) StockRepository() (inventoryUsecase.InventoryAdjuster, error) {
	var err error
	c.stockRepositoryInit.Do(func() {
		c.stockRepository, err = byDriver(c, "stock repository",
			func(db *sql.DB) inventoryUsecase.InventoryAdjuster {
				return inventoryRepository.NewPostgreSQLStockRepository(db)
			},
			func(db *sql.DB) inventoryUsecase.InventoryAdjuster {
				return inventoryRepository.NewMySQLStockRepository(db)
			},
		)
		if err != nil {
			c.initErrors["stockRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["stockRepository"]; exists {
		return nil, storedErr
	}
	return c.stockRepository, nil
}

// ReservationRepository returns the reservation repository based on database driver.
func (c *Container) ReservationRepository() (inventoryUsecase.ReservationRepository, error) {
	var err error
	c.reservationRepositoryInit.Do(func() {
		c.reservationRepository, err = byDriver(c, "reservation repository",
			func(db *sql.DB) inventoryUsecase.ReservationRepository {
				return inventoryRepository.NewPostgreSQLReservationRepository(db)
			},
			func(db *sql.DB) inventoryUsecase.ReservationRepository {
				return inventoryRepository.NewMySQLReservationRepository(db)
			},
		)
		if err != nil {
			c.initErrors["reservationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reservationRepository"]; exists {
		return nil, storedErr
	}
	return c.reservationRepository, nil
}

// CartRepository returns the cart repository based on database driver.
func (c *Container) CartRepository() (checkoutUsecase.CartRepository, error) {
	var err error
	c.cartRepositoryInit.Do(func() {
		c.cartRepository, err = byDriver(c, "cart repository",
			func(db *sql.DB) checkoutUsecase.CartRepository {
				return checkoutRepository.NewPostgreSQLCartRepository(db)
			},
			func(db *sql.DB) checkoutUsecase.CartRepository { return checkoutRepository.NewMySQLCartRepository(db) },
		)
		if err != nil {
			c.initErrors["cartRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cartRepository"]; exists {
		return nil, storedErr
	}
	return c.cartRepository, nil
}

// OrderRepository returns the order repository based on database driver.
func (c *Container) OrderRepository() (checkoutUsecase.OrderRepository, error) {
	var err error
	c.orderRepositoryInit.Do(func() {
		c.orderRepository, err = byDriver(c, "order repository",
			func(db *sql.DB) checkoutUsecase.OrderRepository {
				return checkoutRepository.NewPostgreSQLOrderRepository(db)
			},
			func(db *sql.DB) checkoutUsecase.OrderRepository {
				return checkoutRepository.NewMySQLOrderRepository(db)
			},
		)
		if err != nil {
			c.initErrors["orderRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderRepository"]; exists {
		return nil, storedErr
	}
	return c.orderRepository, nil
}

// PriceRepository returns the variant price reader based on database driver.
func (c *Container) PriceRepository() (checkoutUsecase.VariantPriceReader, error) {
	var err error
	c.priceRepositoryInit.Do(func() {
		c.priceRepository, err = byDriver(c, "price repository",
			func(db *sql.DB) checkoutUsecase.VariantPriceReader {
				return checkoutRepository.NewPostgreSQLVariantPriceRepository(db)
			},
			func(db *sql.DB) checkoutUsecase.VariantPriceReader {
				return checkoutRepository.NewMySQLVariantPriceRepository(db)
			},
		)
		if err != nil {
			c.initErrors["priceRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["priceRepository"]; exists {
		return nil, storedErr
	}
	return c.priceRepository, nil
}

// byDriver builds the repository matching the configured database driver.
// Both PostgreSQL drivers (lib/pq and pgx) share the PostgreSQL repositories.
func byDriver[T any](c *Container, name string, postgres, mysql func(*sql.DB) T) (T, error) {
	var zero T

	switch {
	case database.IsPostgres(c.config.DBDriver):
	case c.config.DBDriver == database.DriverMySQL:
	default:
		return zero, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := c.DB()
	if err != nil {
		return zero, fmt.Errorf("failed to get database for %s: %w", name, err)
	}

	if c.config.DBDriver == database.DriverMySQL {
		return mysql(db), nil
	}
	return postgres(db), nil
}
