// Package payment holds the payment confirmation gate: the contract the
// checkout flow uses to open a payment intent with a provider before the
// client confirms it.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative prices or prices that cannot
// be expressed in whole minor units.
var ErrInvalidAmount = errors.New("invalid amount")

// Intent is a payment intent opened with the provider.  ClientSecret is
// handed to the browser to confirm the payment.
type Intent struct {
	ID           string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
	AmountMinor  int64  `json:"amountMinor"`
	Currency     string `json:"currency"`
}

// Gate opens payment intents.
type Gate interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error)
}

// ToMinorUnits converts a price such as 12.50 to 1250.
func ToMinorUnits(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, ErrInvalidAmount
	}
	shifted := price.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// Sandbox is a Gate that never leaves the process.  Intent IDs and
// secrets are random UUIDs shaped like a provider's.
type Sandbox struct{}

// NewSandbox returns a Sandbox gate.
func NewSandbox() *Sandbox { return &Sandbox{} }

// CreateIntent implements Gate.
func (s *Sandbox) CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	if amountMinor < 0 {
		return Intent{}, ErrInvalidAmount
	}
	if currency == "" {
		currency = "usd"
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		AmountMinor:  amountMinor,
		Currency:     strings.ToLower(currency),
	}, nil
}
