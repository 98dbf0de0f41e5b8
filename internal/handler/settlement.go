package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// SettlementHandler turns confirmed payments into enrollments.
type SettlementHandler struct {
	Engine  *service.Engine
	Timeout time.Duration
	Cache   CachePurger
}

// NewSettlementHandler panics when engine is nil.  A non-positive
// timeout means ten seconds.
func NewSettlementHandler(engine *service.Engine, timeout time.Duration) *SettlementHandler {
	if engine == nil {
		panic("nil engine passed to NewSettlementHandler")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SettlementHandler{Engine: engine, Timeout: timeout}
}

type settlementRequest struct {
	PayerEmail    string          `json:"payerEmail"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	ClassIDs      []string        `json:"classIds"`
}

// Settle handles POST /v1/settlement.  The body is the confirmed payment;
// the raw body is stored with the receipt.  When classIds is absent or
// empty the payer's whole cart is settled.  payerEmail defaults to the
// caller and may name someone else only for admins.  It returns 201 with
// the settlement result, or 200 when the transaction was already settled.
func (h *SettlementHandler) Settle(c echo.Context) error {
	caller, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var body settlementRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.PayerEmail) == "" {
		body.PayerEmail = caller
	}
	if !canActFor(c, body.PayerEmail) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot settle a payment for another user"})
	}

	purchase := service.WholeCart()
	if len(body.ClassIDs) > 0 {
		purchase = service.Explicit(body.ClassIDs...)
	}
	req := service.SettlementRequest{
		Receipt: model.PaymentReceipt{
			TransactionID: body.TransactionID,
			Amount:        body.Amount,
			Currency:      strings.ToLower(body.Currency),
			PayerEmail:    body.PayerEmail,
			Status:        body.Status,
			PaymentMethod: body.PaymentMethod,
			RawPayload:    string(raw),
		},
		Purchase: purchase,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	res, err := h.Engine.Settle(ctx, req)
	if err != nil {
		return settlementError(c, err)
	}
	if res.Replayed {
		return c.JSON(http.StatusOK, res)
	}
	if res.UpdatedResult.ModifiedCount > 0 {
		purge(c, h.Cache, classesPath, leaderboardPath, classProjectionPath)
	}
	return c.JSON(http.StatusCreated, res)
}

func settlementError(c echo.Context, err error) error {
	var oversold *repository.OversoldError
	switch {
	case errors.As(err, &oversold):
		return c.JSON(http.StatusConflict, echo.Map{"error": "oversold", "classIds": oversold.ClassIDs})
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrPaymentNotConfirmed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "settlement timed out"})
	default:
		logError(c, err, "settlement failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to settle"})
	}
}
