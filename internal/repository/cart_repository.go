package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// CartRepo provides data access to the cart_entries table.  Entries are
// keyed by (user_email, class_id).
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add inserts a cart entry.  Adding the same class twice returns
// ErrConflict and leaves the original row untouched.
func (r *CartRepo) Add(ctx context.Context, e model.CartEntry) error {
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_entries (user_email, class_id, added_at) VALUES (?, ?, ?)`,
		normalizeEmail(e.UserEmail), e.ClassID, toMillis(e.AddedAt))
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// Contains reports whether the user already has the class in their cart.
func (r *CartRepo) Contains(ctx context.Context, email, classID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_entries WHERE user_email = ? AND class_id = ?`,
		normalizeEmail(email), classID).Scan(&n)
	return n > 0, err
}

// ClassIDsByUserTx returns the class IDs in a user's cart in the order
// they were added.  It runs inside the caller's transaction so the
// settlement sees the same cart it later cleans up.
func (r *CartRepo) ClassIDsByUserTx(ctx context.Context, tx *sql.Tx, email string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT class_id FROM cart_entries WHERE user_email = ? ORDER BY added_at, class_id`,
		normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListClassesByUser returns the catalog entries for every class in the
// user's cart.  Cart rows pointing at deleted classes are skipped.
func (r *CartRepo) ListClassesByUser(ctx context.Context, email string) ([]model.ClassOffering, error) {
	const q = `SELECT c.id, c.instructor_email, c.instructor_name, c.name, c.image, c.description,
                      c.course_description, c.resources, c.video_link, c.price, c.available_seats,
                      c.total_enrolled, c.status, c.reason, c.created_at
               FROM cart_entries ce
               JOIN classes c ON c.id = ce.class_id
               WHERE ce.user_email = ?
               ORDER BY ce.added_at, c.id`
	rows, err := r.db.QueryContext(ctx, q, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassOffering, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Remove deletes one cart entry and returns the number of rows removed.
func (r *CartRepo) Remove(ctx context.Context, email, classID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE user_email = ? AND class_id = ?`,
		normalizeEmail(email), classID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByUserAndClassesTx removes the user's cart entries whose class is
// in classIDs.  Entries for other classes are left alone so items added
// after checkout began survive.  An empty classIDs slice deletes nothing.
func (r *CartRepo) DeleteByUserAndClassesTx(ctx context.Context, tx *sql.Tx, email string, classIDs []string) (int64, error) {
	if len(classIDs) == 0 {
		return 0, nil
	}
	ph, args := placeholders(classIDs)
	args = append([]interface{}{normalizeEmail(email)}, args...)
	res, err := tx.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE user_email = ? AND class_id IN (`+ph+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
