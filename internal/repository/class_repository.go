package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// ClassRepo provides data access to the classes table.  Settlement is the
// only caller of ReserveSeatTx; all other writes are catalog edits.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo returns a new ClassRepo bound to the given database.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

const classColumns = `id, instructor_email, instructor_name, name, image, description,
       course_description, resources, video_link, price, available_seats,
       total_enrolled, status, reason, created_at`

func scanClass(s rowScanner) (model.ClassOffering, error) {
	var c model.ClassOffering
	var created int64
	err := s.Scan(
		&c.ID, &c.InstructorEmail, &c.InstructorName, &c.Name, &c.Image, &c.Description,
		&c.CourseDescription, &c.Resources, &c.VideoLink, &c.Price, &c.AvailableSeats,
		&c.TotalEnrolled, &c.Status, &c.Reason, &created,
	)
	if err != nil {
		return model.ClassOffering{}, err
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}

// Create inserts a class.  A UUID is generated when ID is empty and the
// status defaults to pending.
func (r *ClassRepo) Create(ctx context.Context, c *model.ClassOffering) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.ClassPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.AvailableSeats < 0 {
		return fmt.Errorf("available seats must not be negative")
	}
	const q = `INSERT INTO classes (id, instructor_email, instructor_name, name, image, description,
                     course_description, resources, video_link, price, available_seats,
                     total_enrolled, status, reason, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, strings.ToLower(strings.TrimSpace(c.InstructorEmail)), c.InstructorName, c.Name, c.Image, c.Description,
		c.CourseDescription, c.Resources, c.VideoLink, c.Price, c.AvailableSeats,
		c.TotalEnrolled, c.Status, c.Reason, toMillis(c.CreatedAt),
	)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// GetByID returns a single class or ErrNotFound.
func (r *ClassRepo) GetByID(ctx context.Context, id string) (model.ClassOffering, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = ?`, id)
	c, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClassOffering{}, ErrNotFound
	}
	return c, err
}

// GetByIDs loads the given classes keyed by ID.  Unknown IDs are simply
// absent from the map.
func (r *ClassRepo) GetByIDs(ctx context.Context, ids []string) (map[string]model.ClassOffering, error) {
	out := make(map[string]model.ClassOffering, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph, args := placeholders(ids)
	rows, err := r.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// ListByStatus returns classes with the given status, newest first.  An
// empty status lists every class.
func (r *ClassRepo) ListByStatus(ctx context.Context, status string) ([]model.ClassOffering, error) {
	if status == "" {
		return r.queryClasses(ctx, `SELECT `+classColumns+` FROM classes ORDER BY created_at DESC, id`)
	}
	return r.queryClasses(ctx,
		`SELECT `+classColumns+` FROM classes WHERE status = ? ORDER BY created_at DESC, id`, status)
}

// ListByInstructor returns the classes owned by email, newest first.
func (r *ClassRepo) ListByInstructor(ctx context.Context, email string) ([]model.ClassOffering, error) {
	return r.queryClasses(ctx,
		`SELECT `+classColumns+` FROM classes WHERE instructor_email = ? ORDER BY created_at DESC, id`,
		normalizeEmail(email))
}

func (r *ClassRepo) queryClasses(ctx context.Context, q string, args ...interface{}) ([]model.ClassOffering, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
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

// Update replaces the instructor-editable fields of a class and sends it
// back to review: status becomes pending and the reason is cleared.  The
// enrollment counter is left alone.
func (r *ClassRepo) Update(ctx context.Context, c *model.ClassOffering) error {
	if c.AvailableSeats < 0 {
		return fmt.Errorf("available seats must not be negative")
	}
	const q = `UPDATE classes
               SET name = ?, image = ?, description = ?, course_description = ?, resources = ?,
                   video_link = ?, price = ?, available_seats = ?, status = ?, reason = ''
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		c.Name, c.Image, c.Description, c.CourseDescription, c.Resources,
		c.VideoLink, c.Price, c.AvailableSeats, model.ClassPending, c.ID)
	if err != nil {
		return err
	}
	if err := r.checkAffected(ctx, res, c.ID); err != nil {
		return err
	}
	c.Status = model.ClassPending
	c.Reason = ""
	return nil
}

// ReserveSeatTx takes one seat from a class and counts one more
// enrollment, but only while available_seats is positive.  The decrement
// is a single conditional UPDATE, so concurrent settlements cannot push
// the counter below zero.  It returns false when no row was modified;
// callers use ExistsTx to tell a sold-out class from an unknown one.
func (r *ClassRepo) ReserveSeatTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	const q = `UPDATE classes
               SET available_seats = available_seats - 1, total_enrolled = total_enrolled + 1
               WHERE id = ? AND available_seats > 0`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExistsTx reports whether a class with the given ID exists.
func (r *ClassRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetStatus records an admin decision on a class.
func (r *ClassRepo) SetStatus(ctx context.Context, id, status, reason string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE classes SET status = ?, reason = ? WHERE id = ?`, status, reason, id)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

// checkAffected turns an UPDATE that matched nothing into ErrNotFound.
func (r *ClassRepo) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the values are unchanged.
	ok, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *ClassRepo) exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// TopByEnrollment returns up to limit classes of any status ordered by
// total_enrolled descending.  Ties follow whatever order the store
// produces.
func (r *ClassRepo) TopByEnrollment(ctx context.Context, limit int) ([]model.ClassOffering, error) {
	return r.queryClasses(ctx,
		`SELECT `+classColumns+` FROM classes ORDER BY total_enrolled DESC LIMIT ?`, limit)
}

// EnrollmentTotalsByInstructor groups every class by instructor email and
// sums total_enrolled per group.
func (r *ClassRepo) EnrollmentTotalsByInstructor(ctx context.Context) ([]model.InstructorTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT instructor_email, SUM(total_enrolled) FROM classes GROUP BY instructor_email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.InstructorTotal, 0)
	for rows.Next() {
		var t model.InstructorTotal
		if err := rows.Scan(&t.InstructorEmail, &t.TotalEnrolled); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByStatus counts classes with the given status; an empty status
// counts every class.
func (r *ClassRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	q := `SELECT COUNT(*) FROM classes`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
