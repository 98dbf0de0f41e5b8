package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// UserRepo reads identity records.  Profile CRUD lives elsewhere; this
// repository covers what enrollment views, leaderboards and instructor
// approval need.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `email, name, role, photo_url, created_at`

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	var created int64
	if err := s.Scan(&u.Email, &u.Name, &u.Role, &u.PhotoURL, &created); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// Create inserts a user.  Role defaults to student.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?)",
		u.Email, u.Name, u.Role, u.PhotoURL, toMillis(u.CreatedAt))
	if isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByEmails loads users keyed by email.  Unknown emails are absent from
// the map.
func (r *UserRepo) GetByEmails(ctx context.Context, emails []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, normalizeEmail(e))
	}
	ph, args := placeholders(normalized)
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE email IN ("+ph+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.Email] = u
	}
	return out, rows.Err()
}

// SetRoleTx changes a user's role within the caller's transaction.  It
// returns false when no user has the email.
func (r *UserRepo) SetRoleTx(ctx context.Context, tx *sql.Tx, email, role string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email=?", normalizeEmail(email)).Scan(&n); err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE email=?", role, normalizeEmail(email)); err != nil {
		return false, err
	}
	return true, nil
}

// ListByRole returns the users holding role, ordered by name.
func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE role=? ORDER BY name, email", role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountByRole counts users holding the role.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role=?", role).Scan(&n)
	return n, err
}
