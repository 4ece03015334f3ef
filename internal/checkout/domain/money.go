package domain

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Money errors.
var (
	ErrCurrencyMismatch = apperrors.Wrap(apperrors.ErrInvalidInput, "currency mismatch")
	ErrAmountOverflow   = apperrors.Wrap(apperrors.ErrInvalidInput, "amount out of range")
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true, "KRW": true,
	"MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true, "VUV": true, "XAF": true,
	"XOF": true, "XPF": true,
}

// Money is an amount in minor units of an upper-case ISO-4217 currency.
type Money struct {
	Amount   int64
	Currency string
}

// NewMoney builds a Money, normalizing the currency code.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// Zero is an empty amount of currency.
func Zero(currency string) Money {
	return NewMoney(0, currency)
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperrors.Wrap(ErrCurrencyMismatch,
			fmt.Sprintf("cannot add %s to %s", other.Currency, m.Currency))
	}
	if (other.Amount > 0 && m.Amount > math.MaxInt64-other.Amount) ||
		(other.Amount < 0 && m.Amount < math.MinInt64-other.Amount) {
		return Money{}, apperrors.Wrap(ErrAmountOverflow,
			fmt.Sprintf("%d + %d %s", m.Amount, other.Amount, m.Currency))
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Times multiplies the amount by quantity.
func (m Money) Times(quantity int) (Money, error) {
	q := int64(quantity)
	product := m.Amount * q
	if q != 0 && (product/q != m.Amount || (q == -1 && m.Amount == math.MinInt64)) {
		return Money{}, apperrors.Wrap(ErrAmountOverflow,
			fmt.Sprintf("%d %s x %d", m.Amount, m.Currency, quantity))
	}
	return Money{Amount: product, Currency: m.Currency}, nil
}

// Decimal renders the amount in major units, e.g. 2468 EUR as "24.68".
func (m Money) Decimal() string {
	if zeroDecimalCurrencies[m.Currency] {
		return fmt.Sprintf("%d", m.Amount)
	}

	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// String renders the amount with its currency.
func (m Money) String() string {
	return m.Decimal() + " " + m.Currency
}
