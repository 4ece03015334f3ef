// Package domain defines the cart and order aggregates of the checkout flow.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

// Cart statuses.
const (
	CartActive     CartStatus = "ACTIVE"
	CartCheckedOut CartStatus = "CHECKED_OUT"
	CartAbandoned  CartStatus = "ABANDONED"
)

// Cart errors.
var (
	ErrCartNotFound  = apperrors.Wrap(apperrors.ErrNotFound, "cart not found")
	ErrCartNotActive = apperrors.Wrap(apperrors.ErrDomainState, "cart is not active")
	ErrCartEmpty     = apperrors.Wrap(apperrors.ErrDomainState, "cart is empty")
)

// Address is the shipping address captured on the cart and snapshotted on the order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CartItem is one line of a cart.
type CartItem struct {
	VariantID uuid.UUID
	Quantity  int
}

// Cart is a user's basket.
type Cart struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Status          CartStatus
	Items           []CartItem
	ShippingAddress *Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EnsureCheckoutable fails unless the cart is active and holds at least one item.
func (c *Cart) EnsureCheckoutable() error {
	if c.Status != CartActive {
		return apperrors.Wrap(ErrCartNotActive, string(c.Status))
	}
	if len(c.Items) == 0 {
		return ErrCartEmpty
	}
	return nil
}

// MarkCheckedOut closes the cart.
func (c *Cart) MarkCheckedOut(now time.Time) error {
	if err := c.EnsureCheckoutable(); err != nil {
		return err
	}
	c.Status = CartCheckedOut
	c.UpdatedAt = now.UTC()
	return nil
}

// VariantIDs returns the variants referenced by the cart, in item order.
func (c *Cart) VariantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.VariantID)
	}
	return ids
}

// VariantPrice is the current catalog price of a variant.
type VariantPrice struct {
	VariantID uuid.UUID
	Name      string
	Price     Money
}
