package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// CartHandler manages the authenticated student's cart.
type CartHandler struct {
	Carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	if carts == nil {
		panic("nil cart service passed to NewCartHandler")
	}
	return &CartHandler{Carts: carts}
}

type addToCartRequest struct {
	ClassID string `json:"classId"`
}

// Add handles POST /v1/cart.
func (h *CartHandler) Add(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req addToCartRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ClassID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "classId is required"})
	}
	err = h.Carts.Add(c.Request().Context(), email, req.ClassID)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, echo.Map{"classId": strings.TrimSpace(req.ClassID)})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already enrolled"})
	case errors.Is(err, service.ErrAlreadyInCart):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already in cart"})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		logError(c, err, "add to cart")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add to cart"})
	}
}

// List handles GET /v1/cart.
func (h *CartHandler) List(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Carts.List(c.Request().Context(), email)
	if err != nil {
		logError(c, err, "list cart")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Remove handles DELETE /v1/cart/:classId.  Removing a class that is not
// in the cart is not an error; deletedCount is then zero.
func (h *CartHandler) Remove(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	n, err := h.Carts.Remove(c.Request().Context(), email, c.Param("classId"))
	if err != nil {
		logError(c, err, "remove from cart")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove from cart"})
	}
	return c.JSON(http.StatusOK, echo.Map{"deletedCount": n})
}
