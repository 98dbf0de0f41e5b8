package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// ApprovalResult describes an admin decision on an instructor application.
type ApprovalResult struct {
	ApplicationID string `json:"applicationId"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	Promoted      bool   `json:"promoted"`
}

// Approval records admin decisions on instructor applications.
type Approval struct {
	db           *sql.DB
	applications *repository.ApplicationRepo
	users        *repository.UserRepo
	log          zerolog.Logger
}

func NewApproval(db *sql.DB, applications *repository.ApplicationRepo, users *repository.UserRepo, log zerolog.Logger) *Approval {
	return &Approval{db: db, applications: applications, users: users, log: log.With().Str("component", "approval").Logger()}
}

// Apply files a pending instructor application for email.
func (a *Approval) Apply(ctx context.Context, app *model.InstructorApplication) error {
	if app.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	app.ID = ""
	app.Status = model.ApplicationPending
	app.Reason = ""
	return a.applications.Create(ctx, app)
}

// Decide sets the status of an application.  Approving it promotes the
// applicant to instructor in the same transaction.  When the applicant
// has no user record the status still changes and Promoted is false.
func (a *Approval) Decide(ctx context.Context, applicationID, status, reason string) (ApprovalResult, error) {
	switch status {
	case model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected:
	default:
		return ApprovalResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("begin approval: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	email, err := a.applications.UpdateStatusTx(ctx, tx, applicationID, status, reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ApprovalResult{}, err
		}
		return ApprovalResult{}, fmt.Errorf("update application: %w", err)
	}
	res := ApprovalResult{ApplicationID: applicationID, Email: email, Status: status}
	if status == model.ApplicationApproved {
		promoted, err := a.users.SetRoleTx(ctx, tx, email, model.RoleInstructor)
		if err != nil {
			return ApprovalResult{}, fmt.Errorf("promote user: %w", err)
		}
		res.Promoted = promoted
	}
	if err := tx.Commit(); err != nil {
		return ApprovalResult{}, fmt.Errorf("commit approval: %w", err)
	}
	committed = true
	a.log.Info().Str("application_id", applicationID).Str("status", status).Bool("promoted", res.Promoted).Msg("application decided")
	return res, nil
}

// ApplicationFor returns the latest application filed by email.
func (a *Approval) ApplicationFor(ctx context.Context, email string) (model.InstructorApplication, error) {
	return a.applications.LatestByEmail(ctx, email)
}

// Applications lists applications for the admin queue.  An empty status
// lists all of them.
func (a *Approval) Applications(ctx context.Context, status string) ([]model.InstructorApplication, error) {
	switch status {
	case "", model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	return a.applications.List(ctx, status)
}

// ChangeRole sets a user's role directly, e.g. to demote an instructor.
// It returns repository.ErrNotFound when no user has the email.
func (a *Approval) ChangeRole(ctx context.Context, email, role string) error {
	switch role {
	case model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role change: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ok, err := a.users.SetRoleTx(ctx, tx, email, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role change: %w", err)
	}
	committed = true
	a.log.Info().Str("email", email).Str("role", role).Msg("role changed")
	return nil
}
