package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/payment"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Checkout opens payment intents and serves payment history.
type Checkout struct {
	gate     payment.Gate
	payments *repository.PaymentRepo
	currency string
}

func NewCheckout(gate payment.Gate, payments *repository.PaymentRepo, currency string) *Checkout {
	if currency == "" {
		currency = "usd"
	}
	return &Checkout{gate: gate, payments: payments, currency: currency}
}

// CreateIntent opens a payment intent for price.
func (c *Checkout) CreateIntent(ctx context.Context, price decimal.Decimal) (payment.Intent, error) {
	minor, err := payment.ToMinorUnits(price)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return payment.Intent{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return payment.Intent{}, err
	}
	intent, err := c.gate.CreateIntent(ctx, minor, c.currency)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("create intent: %w", err)
	}
	return intent, nil
}

// History lists the payer's receipts, newest first.
func (c *Checkout) History(ctx context.Context, email string) ([]model.PaymentReceipt, error) {
	return c.payments.ListByPayer(ctx, email)
}

// HistoryCount returns how many receipts the payer has.
func (c *Checkout) HistoryCount(ctx context.Context, email string) (int, error) {
	return c.payments.CountByPayer(ctx, email)
}
