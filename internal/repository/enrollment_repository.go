package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// EnrollmentRepo stores enrollment records.  A record is one row in
// enrollments plus one enrollment_classes row per purchased class.
// Records are never updated after insertion.
type EnrollmentRepo struct {
	db *sql.DB
}

// NewEnrollmentRepo returns a new EnrollmentRepo bound to the given database.
func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

// CreateTx inserts the record and its class links within the caller's
// transaction.  ID and EnrolledAt are filled in when empty.  A second
// record for the same transaction ID returns ErrConflict.
func (r *EnrollmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *model.EnrollmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EnrolledAt.IsZero() {
		rec.EnrolledAt = time.Now().UTC()
	}
	rec.UserEmail = normalizeEmail(rec.UserEmail)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_email, transaction_id, enrolled_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserEmail, rec.TransactionID, toMillis(rec.EnrolledAt))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if len(rec.ClassIDs) == 0 {
		return nil
	}
	query := `INSERT INTO enrollment_classes (enrollment_id, class_id) VALUES `
	args := make([]interface{}, 0, len(rec.ClassIDs)*2)
	for i, id := range rec.ClassIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, rec.ID, id)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByTransactionIDTx loads the record written for a transaction ID, or
// ErrNotFound.
func (r *EnrollmentRepo) GetByTransactionIDTx(ctx context.Context, tx *sql.Tx, transactionID string) (model.EnrollmentRecord, error) {
	var rec model.EnrollmentRecord
	var enrolled int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_email, transaction_id, enrolled_at FROM enrollments WHERE transaction_id = ?`,
		transactionID).Scan(&rec.ID, &rec.UserEmail, &rec.TransactionID, &enrolled)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EnrollmentRecord{}, ErrNotFound
	}
	if err != nil {
		return model.EnrollmentRecord{}, err
	}
	rec.EnrolledAt = fromMillis(enrolled)

	rows, err := tx.QueryContext(ctx,
		`SELECT class_id FROM enrollment_classes WHERE enrollment_id = ? ORDER BY class_id`, rec.ID)
	if err != nil {
		return model.EnrollmentRecord{}, err
	}
	defer rows.Close()
	rec.ClassIDs = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return model.EnrollmentRecord{}, err
		}
		rec.ClassIDs = append(rec.ClassIDs, id)
	}
	return rec, rows.Err()
}

// ListByUser returns every enrollment record of a user, newest first.
// Class links are collected with a single join.
func (r *EnrollmentRepo) ListByUser(ctx context.Context, email string) ([]model.EnrollmentRecord, error) {
	const q = `SELECT e.id, e.user_email, e.transaction_id, e.enrolled_at, ec.class_id
               FROM enrollments e
               LEFT JOIN enrollment_classes ec ON ec.enrollment_id = e.id
               WHERE e.user_email = ?
               ORDER BY e.enrolled_at DESC, e.id, ec.class_id`
	rows, err := r.db.QueryContext(ctx, q, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]model.EnrollmentRecord, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			id, userEmail, txID string
			enrolled            int64
			classID             sql.NullString
		)
		if err := rows.Scan(&id, &userEmail, &txID, &enrolled, &classID); err != nil {
			return nil, err
		}
		idx, ok := index[id]
		if !ok {
			idx = len(records)
			index[id] = idx
			records = append(records, model.EnrollmentRecord{
				ID:            id,
				UserEmail:     userEmail,
				TransactionID: txID,
				EnrolledAt:    fromMillis(enrolled),
				ClassIDs:      []string{},
			})
		}
		if classID.Valid {
			records[idx].ClassIDs = append(records[idx].ClassIDs, classID.String)
		}
	}
	return records, rows.Err()
}

// FirstByClass returns the earliest enrollment record that includes the
// class.  Only the matched class is listed in ClassIDs.  ErrNotFound is
// returned when nobody has enrolled.
func (r *EnrollmentRepo) FirstByClass(ctx context.Context, classID string) (model.EnrollmentRecord, error) {
	const q = `SELECT e.id, e.user_email, e.transaction_id, e.enrolled_at
               FROM enrollment_classes ec
               JOIN enrollments e ON e.id = ec.enrollment_id
               WHERE ec.class_id = ?
               ORDER BY e.enrolled_at, e.id
               LIMIT 1`
	var rec model.EnrollmentRecord
	var enrolled int64
	err := r.db.QueryRowContext(ctx, q, classID).Scan(&rec.ID, &rec.UserEmail, &rec.TransactionID, &enrolled)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EnrollmentRecord{}, ErrNotFound
	}
	if err != nil {
		return model.EnrollmentRecord{}, err
	}
	rec.EnrolledAt = fromMillis(enrolled)
	rec.ClassIDs = []string{classID}
	return rec, nil
}

// HasClass reports whether the user holds any enrollment for the class.
func (r *EnrollmentRepo) HasClass(ctx context.Context, email, classID string) (bool, error) {
	const q = `SELECT COUNT(*)
               FROM enrollments e
               JOIN enrollment_classes ec ON ec.enrollment_id = e.id
               WHERE e.user_email = ? AND ec.class_id = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, normalizeEmail(email), classID).Scan(&n)
	return n > 0, err
}

// Count returns the number of enrollment records.
func (r *EnrollmentRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&n)
	return n, err
}
