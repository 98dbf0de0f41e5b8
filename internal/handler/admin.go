package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// AdminHandler serves the admin-only review and dashboard endpoints.
type AdminHandler struct {
	Approval *service.Approval
	Catalog  *service.Catalog
	Stats    *service.Stats
	Cache    CachePurger
}

func NewAdminHandler(approval *service.Approval, catalog *service.Catalog, stats *service.Stats) *AdminHandler {
	if approval == nil || catalog == nil || stats == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Approval: approval, Catalog: catalog, Stats: stats}
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// DecideApplication handles PATCH /v1/admin/applications/:id/status.
// Approving promotes the applicant to instructor.
func (h *AdminHandler) DecideApplication(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Approval.Decide(c.Request().Context(), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		return reviewError(c, err, "application")
	}
	if res.Promoted {
		purge(c, h.Cache, instructorsBoardPath)
	}
	return c.JSON(http.StatusOK, res)
}

// ReviewClass handles PATCH /v1/admin/classes/:id/status.
func (h *AdminHandler) ReviewClass(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	id := c.Param("id")
	if err := h.Catalog.ReviewClass(c.Request().Context(), id, req.Status, req.Reason); err != nil {
		return reviewError(c, err, "class")
	}
	purge(c, h.Cache, classesPath, leaderboardPath, classProjectionPath+id)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": req.Status})
}

type roleRequest struct {
	Role string `json:"role"`
}

// ChangeRole handles PATCH /v1/admin/users/:email/role.  Demoting an
// instructor drops them from the instructor leaderboard at once.
func (h *AdminHandler) ChangeRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	email := c.Param("email")
	if err := h.Approval.ChangeRole(c.Request().Context(), email, req.Role); err != nil {
		return reviewError(c, err, "user")
	}
	purge(c, h.Cache, instructorsBoardPath)
	return c.JSON(http.StatusOK, echo.Map{"email": email, "role": req.Role})
}

// Classes handles GET /v1/admin/classes?status=, the review queue.  An
// absent status lists every class.
func (h *AdminHandler) Classes(c echo.Context) error {
	items, err := h.Catalog.AllClasses(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return listError(c, err, "classes")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Applications handles GET /v1/admin/applications?status=.
func (h *AdminHandler) Applications(c echo.Context) error {
	items, err := h.Approval.Applications(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return listError(c, err, "applications")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Summary handles GET /v1/admin/stats.
func (h *AdminHandler) Summary(c echo.Context) error {
	s, err := h.Stats.Summary(c.Request().Context())
	if err != nil {
		logError(c, err, "admin stats")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load stats"})
	}
	return c.JSON(http.StatusOK, s)
}

func reviewError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	default:
		logError(c, err, "update "+what+" status")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update " + what})
	}
}

func listError(c echo.Context, err error, what string) error {
	if errors.Is(err, service.ErrInvalidRequest) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	logError(c, err, "list "+what)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load " + what})
}
