package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// ApplicationRepo stores instructor applications.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo returns a new ApplicationRepo bound to the given database.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// Create inserts a pending application.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.InstructorApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = model.ApplicationPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Email = normalizeEmail(a.Email)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO instructor_applications (id, email, name, experience, status, reason, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Name, a.Experience, a.Status, a.Reason, toMillis(a.CreatedAt))
	return err
}

const applicationColumns = `id, email, name, experience, status, reason, created_at`

func scanApplication(s rowScanner) (model.InstructorApplication, error) {
	var a model.InstructorApplication
	var created int64
	if err := s.Scan(&a.ID, &a.Email, &a.Name, &a.Experience, &a.Status, &a.Reason, &created); err != nil {
		return model.InstructorApplication{}, err
	}
	a.CreatedAt = fromMillis(created)
	return a, nil
}

// GetByID returns an application or ErrNotFound.
func (r *ApplicationRepo) GetByID(ctx context.Context, id string) (model.InstructorApplication, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM instructor_applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InstructorApplication{}, ErrNotFound
	}
	return a, err
}

// LatestByEmail returns the most recent application filed by email, or
// ErrNotFound.
func (r *ApplicationRepo) LatestByEmail(ctx context.Context, email string) (model.InstructorApplication, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM instructor_applications
         WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1`, normalizeEmail(email))
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InstructorApplication{}, ErrNotFound
	}
	return a, err
}

// List returns applications newest first, optionally filtered by status.
func (r *ApplicationRepo) List(ctx context.Context, status string) ([]model.InstructorApplication, error) {
	q := `SELECT ` + applicationColumns + ` FROM instructor_applications`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.InstructorApplication, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateStatusTx sets status and reason on an application and returns the
// applicant's email.  ErrNotFound is returned for an unknown ID.
func (r *ApplicationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status, reason string) (string, error) {
	var email string
	err := tx.QueryRowContext(ctx, `SELECT email FROM instructor_applications WHERE id = ?`, id).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE instructor_applications SET status = ?, reason = ? WHERE id = ?`, status, reason, id); err != nil {
		return "", err
	}
	return email, nil
}
