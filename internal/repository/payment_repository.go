package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// PaymentRepo persists payment receipts.  The table is append-only and
// transaction_id is unique.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, transaction_id, amount, currency, payer_email, status, payment_method, raw_payload, recorded_at`

func scanPayment(s rowScanner) (model.PaymentReceipt, error) {
	var p model.PaymentReceipt
	var recorded int64
	if err := s.Scan(&p.ID, &p.TransactionID, &p.Amount, &p.Currency, &p.PayerEmail,
		&p.Status, &p.PaymentMethod, &p.RawPayload, &recorded); err != nil {
		return model.PaymentReceipt{}, err
	}
	p.RecordedAt = fromMillis(recorded)
	return p, nil
}

// InsertTx stores the receipt within the caller's transaction.  ID and
// RecordedAt are filled in when empty.  A duplicate transaction ID returns
// ErrConflict.
func (r *PaymentRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.PaymentReceipt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	p.PayerEmail = normalizeEmail(p.PayerEmail)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TransactionID, p.Amount, p.Currency, p.PayerEmail,
		p.Status, p.PaymentMethod, p.RawPayload, toMillis(p.RecordedAt))
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// GetByTransactionIDTx returns the receipt for a transaction ID or
// ErrNotFound.
func (r *PaymentRepo) GetByTransactionIDTx(ctx context.Context, tx *sql.Tx, transactionID string) (model.PaymentReceipt, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ?`, transactionID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaymentReceipt{}, ErrNotFound
	}
	return p, err
}

// ListByPayer returns the payer's receipts, newest first.
func (r *PaymentRepo) ListByPayer(ctx context.Context, email string) ([]model.PaymentReceipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payer_email = ? ORDER BY recorded_at DESC, id`,
		normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentReceipt, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountByPayer returns how many receipts the payer has.
func (r *PaymentRepo) CountByPayer(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE payer_email = ?`, normalizeEmail(email)).Scan(&n)
	return n, err
}
