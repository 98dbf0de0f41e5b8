package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Catalog covers the user and class writes the enrollment flow depends
// on: registering identities, authoring classes and reviewing them.
type Catalog struct {
	classes *repository.ClassRepo
	users   *repository.UserRepo
}

func NewCatalog(classes *repository.ClassRepo, users *repository.UserRepo) *Catalog {
	return &Catalog{classes: classes, users: users}
}

// RegisterUser stores a new student identity.
func (c *Catalog) RegisterUser(ctx context.Context, u *model.User) error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	u.Role = model.RoleStudent
	return c.users.Create(ctx, u)
}

// CreateClass stores a pending class owned by instructorEmail.  Seats
// and price must not be negative; counters always start at zero.
func (c *Catalog) CreateClass(ctx context.Context, instructorEmail string, class *model.ClassOffering) error {
	if strings.TrimSpace(class.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if class.AvailableSeats < 0 || class.Price.IsNegative() {
		return fmt.Errorf("%w: seats and price must not be negative", ErrInvalidRequest)
	}
	class.ID = ""
	class.InstructorEmail = instructorEmail
	class.TotalEnrolled = 0
	class.Status = model.ClassPending
	class.Reason = ""
	if class.InstructorName == "" {
		u, err := c.users.GetByEmail(ctx, instructorEmail)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load instructor: %w", err)
		}
		class.InstructorName = u.Name
	}
	return c.classes.Create(ctx, class)
}

// ApprovedClasses lists the public catalog.
func (c *Catalog) ApprovedClasses(ctx context.Context) ([]model.ClassOffering, error) {
	return c.classes.ListByStatus(ctx, model.ClassApproved)
}

// ReviewClass records an admin decision on a class.
func (c *Catalog) ReviewClass(ctx context.Context, classID, status, reason string) error {
	switch status {
	case model.ClassPending, model.ClassApproved, model.ClassRejected:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	return c.classes.SetStatus(ctx, classID, status, reason)
}

// Class returns one class of any status.
func (c *Catalog) Class(ctx context.Context, id string) (model.ClassOffering, error) {
	return c.classes.GetByID(ctx, id)
}

// UpdateClass applies an edit by editorEmail.  Only the owning instructor
// or an admin may edit; anyone else gets repository.ErrForbidden.  Every
// edit sends the class back to pending review.
func (c *Catalog) UpdateClass(ctx context.Context, editorEmail, editorRole, classID string, edit *model.ClassOffering) (model.ClassOffering, error) {
	if strings.TrimSpace(edit.Name) == "" {
		return model.ClassOffering{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if edit.AvailableSeats < 0 || edit.Price.IsNegative() {
		return model.ClassOffering{}, fmt.Errorf("%w: seats and price must not be negative", ErrInvalidRequest)
	}
	current, err := c.classes.GetByID(ctx, classID)
	if err != nil {
		return model.ClassOffering{}, err
	}
	if editorRole != model.RoleAdmin && !strings.EqualFold(current.InstructorEmail, editorEmail) {
		return model.ClassOffering{}, repository.ErrForbidden
	}
	edit.ID = classID
	if err := c.classes.Update(ctx, edit); err != nil {
		return model.ClassOffering{}, err
	}
	return c.classes.GetByID(ctx, classID)
}

// InstructorClasses lists every class owned by email, whatever its status.
func (c *Catalog) InstructorClasses(ctx context.Context, email string) ([]model.ClassOffering, error) {
	return c.classes.ListByInstructor(ctx, email)
}

// AllClasses is the admin view of the catalog.  An empty status lists
// every class.
func (c *Catalog) AllClasses(ctx context.Context, status string) ([]model.ClassOffering, error) {
	switch status {
	case "", model.ClassPending, model.ClassApproved, model.ClassRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	return c.classes.ListByStatus(ctx, status)
}

// Instructors lists users holding the instructor role.
func (c *Catalog) Instructors(ctx context.Context) ([]model.User, error) {
	return c.users.ListByRole(ctx, model.RoleInstructor)
}
