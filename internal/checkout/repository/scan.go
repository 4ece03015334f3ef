// Package repository provides cart, order and catalog price persistence for
// PostgreSQL and MySQL.
package repository

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/allisson/checkout/internal/checkout/domain"
	apperrors "github.com/allisson/checkout/internal/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const orderColumns = `id, user_id, cart_id, status, total_amount, currency, lines_json, shipping_json,
			  checkout_session_id, payment_intent_id, created_at, updated_at`

// scanOrder reads one order row in orderColumns order.
func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order        domain.Order
		status       string
		linesJSON    []byte
		shippingJSON []byte
		sessionID    sql.NullString
		intentID     sql.NullString
	)

	if err := row.Scan(&order.ID, &order.UserID, &order.CartID, &status, &order.Total.Amount,
		&order.Total.Currency, &linesJSON, &shippingJSON, &sessionID, &intentID,
		&order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	order.CheckoutSessionID = sessionID.String
	order.PaymentIntentID = intentID.String

	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal order lines")
	}
	if len(shippingJSON) > 0 {
		order.Shipping = &domain.Address{}
		if err := json.Unmarshal(shippingJSON, order.Shipping); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal order shipping")
		}
	}

	return &order, nil
}

// marshalOrder encodes the JSON columns of an order. A nil shipping address is NULL.
func marshalOrder(order *domain.Order) (lines []byte, shipping []byte, err error) {
	lines, err = json.Marshal(order.Lines)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal order lines")
	}
	if order.Shipping != nil {
		shipping, err = json.Marshal(order.Shipping)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "failed to marshal order shipping")
		}
	}
	return lines, shipping, nil
}

func scanCart(row rowScanner) (*domain.Cart, error) {
	var (
		cart         domain.Cart
		status       string
		shippingJSON []byte
	)

	if err := row.Scan(&cart.ID, &cart.UserID, &status, &shippingJSON, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return nil, err
	}

	cart.Status = domain.CartStatus(status)
	if len(shippingJSON) > 0 {
		cart.ShippingAddress = &domain.Address{}
		if err := json.Unmarshal(shippingJSON, cart.ShippingAddress); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal cart shipping address")
		}
	}

	return &cart, nil
}

func scanCartItems(rows *sql.Rows) ([]domain.CartItem, error) {
	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.VariantID, &item.Quantity); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan cart item")
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// placeholders renders n bind parameters, "$1, $2" style when numbered is
// true and "?, ?" otherwise.
func placeholders(n int, numbered bool) string {
	parts := make([]string, n)
	for i := range parts {
		if numbered {
			parts[i] = "$" + strconv.Itoa(i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}
