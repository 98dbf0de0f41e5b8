package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/service"
)

// LeaderboardHandler exposes the popular classes and instructors lists.
type LeaderboardHandler struct {
	Board *service.Leaderboard
}

func NewLeaderboardHandler(board *service.Leaderboard) *LeaderboardHandler {
	if board == nil {
		panic("nil leaderboard passed to NewLeaderboardHandler")
	}
	return &LeaderboardHandler{Board: board}
}

// Classes handles GET /v1/leaderboard/classes.
func (h *LeaderboardHandler) Classes(c echo.Context) error {
	items, err := h.Board.PopularClasses(c.Request().Context())
	if err != nil {
		logError(c, err, "popular classes")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load popular classes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Instructors handles GET /v1/leaderboard/instructors.
func (h *LeaderboardHandler) Instructors(c echo.Context) error {
	items, err := h.Board.PopularInstructors(c.Request().Context())
	if err != nil {
		logError(c, err, "popular instructors")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load popular instructors"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
