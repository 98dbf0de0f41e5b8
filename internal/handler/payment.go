package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/service"
)

// PaymentHandler creates payment intents and lists receipts.
type PaymentHandler struct {
	Checkout *service.Checkout
}

func NewPaymentHandler(checkout *service.Checkout) *PaymentHandler {
	if checkout == nil {
		panic("nil checkout passed to NewPaymentHandler")
	}
	return &PaymentHandler{Checkout: checkout}
}

type intentRequest struct {
	Price decimal.Decimal `json:"price"`
}

// CreateIntent handles POST /v1/payments/intent.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req intentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	intent, err := h.Checkout.CreateIntent(c.Request().Context(), req.Price)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		logError(c, err, "create intent")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"clientSecret": intent.ClientSecret,
		"intentId":     intent.ID,
		"amountMinor":  intent.AmountMinor,
		"currency":     intent.Currency,
	})
}

// History handles GET /v1/payments/history for the caller.
func (h *PaymentHandler) History(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Checkout.History(c.Request().Context(), email)
	if err != nil {
		logError(c, err, "payment history")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// HistoryCount handles GET /v1/payments/history/count.
func (h *PaymentHandler) HistoryCount(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	n, err := h.Checkout.HistoryCount(c.Request().Context(), email)
	if err != nil {
		logError(c, err, "payment count")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count payments"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
