package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// ProjectionHandler serves the read-side enrollment views.
type ProjectionHandler struct {
	Views *service.EnrollmentViews
}

func NewProjectionHandler(views *service.EnrollmentViews) *ProjectionHandler {
	if views == nil {
		panic("nil views passed to NewProjectionHandler")
	}
	return &ProjectionHandler{Views: views}
}

// ByStudent handles GET /v1/enrollment-projection/:email.  Students may
// only read their own enrollments; admins may read anyone's.
func (h *ProjectionHandler) ByStudent(c echo.Context) error {
	email := strings.TrimSpace(c.Param("email"))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	if !canActFor(c, email) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	items, err := h.Views.ByStudent(c.Request().Context(), email)
	if err != nil {
		logError(c, err, "enrollment projection for "+email)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load enrollments"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ByClass handles GET /v1/enrollment-projection/class/:classId and
// returns the first enrollment of the class joined with its instructor.
func (h *ProjectionHandler) ByClass(c echo.Context) error {
	classID := strings.TrimSpace(c.Param("classId"))
	if classID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class id is required"})
	}
	item, err := h.Views.ByClass(c.Request().Context(), classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no enrollment found for class"})
		}
		logError(c, err, "class projection for "+classID)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load enrollment"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}
