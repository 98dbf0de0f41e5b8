package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/service"
)

// CatalogHandler covers user registration, instructor applications and
// class authoring.
type CatalogHandler struct {
	Catalog  *service.Catalog
	Approval *service.Approval
	Cache    CachePurger
}

func NewCatalogHandler(catalog *service.Catalog, approval *service.Approval) *CatalogHandler {
	if catalog == nil || approval == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog, Approval: approval}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// Register handles POST /v1/users.  New users are always students.
func (h *CatalogHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	u := model.User{Email: req.Email, Name: req.Name, PhotoURL: req.PhotoURL}
	if err := h.Catalog.RegisterUser(c.Request().Context(), &u); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		logError(c, err, "register user")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to register"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": u})
}

type applicationRequest struct {
	Name       string `json:"name"`
	Experience string `json:"experience"`
}

// Apply handles POST /v1/applications for the caller.
func (h *CatalogHandler) Apply(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req applicationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	app := model.InstructorApplication{Email: email, Name: req.Name, Experience: req.Experience}
	if err := h.Approval.Apply(c.Request().Context(), &app); err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		logError(c, err, "apply")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to submit application"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": app})
}

// CreateClass handles POST /v1/classes.  The class belongs to the caller
// and starts pending.
func (h *CatalogHandler) CreateClass(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var class model.ClassOffering
	if err := c.Bind(&class); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Catalog.CreateClass(c.Request().Context(), email, &class); err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		logError(c, err, "create class")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create class"})
	}
	purge(c, h.Cache, leaderboardPath)
	return c.JSON(http.StatusCreated, echo.Map{"item": class})
}

// ListClasses handles GET /v1/classes and returns approved classes.
func (h *CatalogHandler) ListClasses(c echo.Context) error {
	items, err := h.Catalog.ApprovedClasses(c.Request().Context())
	if err != nil {
		logError(c, err, "list classes")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load classes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetClass handles GET /v1/classes/:id.  Only approved classes are
// public; owners see the rest through MyClasses.
func (h *CatalogHandler) GetClass(c echo.Context) error {
	class, err := h.Catalog.Class(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		}
		logError(c, err, "get class")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load class"})
	}
	if class.Status != model.ClassApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": class})
}

// UpdateClass handles PUT /v1/classes/:id.  Owners and admins may edit;
// the class goes back to pending review.
func (h *CatalogHandler) UpdateClass(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var edit model.ClassOffering
	if err := c.Bind(&edit); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	id := c.Param("id")
	class, err := h.Catalog.UpdateClass(c.Request().Context(), email, middleware.CurrentRole(c), id, &edit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner of this class"})
		}
		logError(c, err, "update class")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update class"})
	}
	purge(c, h.Cache, classesPath, leaderboardPath, classProjectionPath+id)
	return c.JSON(http.StatusOK, echo.Map{"item": class})
}

// MyClasses handles GET /v1/instructor/classes: every class the caller
// owns, whatever its review status.
func (h *CatalogHandler) MyClasses(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Catalog.InstructorClasses(c.Request().Context(), email)
	if err != nil {
		logError(c, err, "instructor classes")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load classes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Instructors handles GET /v1/instructors.
func (h *CatalogHandler) Instructors(c echo.Context) error {
	items, err := h.Catalog.Instructors(c.Request().Context())
	if err != nil {
		logError(c, err, "list instructors")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load instructors"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ApplicationStatus handles GET /v1/applications/:email and returns the
// latest application filed by that user.
func (h *CatalogHandler) ApplicationStatus(c echo.Context) error {
	email := c.Param("email")
	if !canActFor(c, email) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	app, err := h.Approval.ApplicationFor(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no application found"})
		}
		logError(c, err, "application status")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load application"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": app})
}
