package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSucceeded is the only receipt status the settlement engine accepts.
const PaymentSucceeded = "succeeded"

// PaymentReceipt is a confirmed payment as reported by the payment
// provider.  Receipts are append-only; RawPayload keeps the provider body
// exactly as it was received.
type PaymentReceipt struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PayerEmail    string          `json:"userEmail"`
	Status        string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	RawPayload    string          `json:"-"`
	RecordedAt    time.Time       `json:"date"`
}
