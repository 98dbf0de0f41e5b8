package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// EventPublisher receives settlement events after commit.
type EventPublisher interface {
	PublishEnrollmentSettled(ctx context.Context, ev queue.EnrollmentSettledEvent) error
}

// SettlementRequest pairs a confirmed payment with the classes it pays for.
type SettlementRequest struct {
	Receipt  model.PaymentReceipt
	Purchase Purchase
}

// InsertResult reports the receipt write.
type InsertResult struct {
	InsertedID   string `json:"insertedId"`
	Acknowledged bool   `json:"acknowledged"`
}

// DeleteResult reports how many cart rows were removed.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// EnrolledResult carries the enrollment record ID.
type EnrolledResult struct {
	InsertedID string `json:"insertedId"`
}

// UpdateResult reports the class counter updates: classes matched and
// classes whose counters moved.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// SettlementResult is returned by a successful settlement.  Replayed is
// true when the transaction ID had already been settled; the counts are
// then zero, the IDs refer to the original writes and the stored receipt
// is reported as acknowledged.
type SettlementResult struct {
	PaymentResult  InsertResult   `json:"paymentResult"`
	DeletedResult  DeleteResult   `json:"deletedResult"`
	EnrolledResult EnrolledResult `json:"enrolledResult"`
	UpdatedResult  UpdateResult   `json:"updatedResult"`
	ClassIDs       []string       `json:"classIds"`
	Replayed       bool           `json:"replayed"`
}

// Engine turns a confirmed payment into an enrollment.  Seat counters,
// the enrollment record, cart cleanup and the receipt are written in one
// database transaction; either all of them land or none do.
type Engine struct {
	db          *sql.DB
	classes     *repository.ClassRepo
	carts       *repository.CartRepo
	enrollments *repository.EnrollmentRepo
	payments    *repository.PaymentRepo
	publisher   EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewEngine wires an Engine.  publisher may be nil.
func NewEngine(db *sql.DB, classes *repository.ClassRepo, carts *repository.CartRepo,
	enrollments *repository.EnrollmentRepo, payments *repository.PaymentRepo,
	publisher EventPublisher, log zerolog.Logger) *Engine {
	if db == nil || classes == nil || carts == nil || enrollments == nil || payments == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{
		db:          db,
		classes:     classes,
		carts:       carts,
		enrollments: enrollments,
		payments:    payments,
		publisher:   publisher,
		log:         log.With().Str("component", "settlement").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func validateReceipt(r *model.PaymentReceipt) error {
	r.PayerEmail = strings.ToLower(strings.TrimSpace(r.PayerEmail))
	r.TransactionID = strings.TrimSpace(r.TransactionID)
	if r.PayerEmail == "" {
		return fmt.Errorf("%w: payer email is required", ErrInvalidRequest)
	}
	if r.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidRequest)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}
	if r.Status != model.PaymentSucceeded {
		return fmt.Errorf("%w: status %q", ErrPaymentNotConfirmed, r.Status)
	}
	return nil
}

// Settle applies a confirmed payment.  A transaction ID that was already
// settled by the same payer returns the original result with Replayed
// set; by another payer it returns repository.ErrConflict.  A class with
// no seats left aborts with *repository.OversoldError and an unknown class
// with repository.ErrNotFound; nothing is written in either case.
func (e *Engine) Settle(ctx context.Context, req SettlementRequest) (*SettlementResult, error) {
	receipt := req.Receipt
	if err := validateReceipt(&receipt); err != nil {
		return nil, err
	}
	explicitIDs, err := req.Purchase.validate()
	if err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if res, err := e.replayTx(ctx, tx, receipt); err != nil || res != nil {
		return res, err
	}

	classIDs := explicitIDs
	if req.Purchase.IsWholeCart() {
		cartIDs, err := e.carts.ClassIDsByUserTx(ctx, tx, receipt.PayerEmail)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		classIDs = normalizeClassIDs(cartIDs)
	}
	if len(classIDs) == 0 {
		e.log.Info().Str("transaction_id", receipt.TransactionID).Str("payer", receipt.PayerEmail).
			Msg("empty purchase, nothing settled")
		return &SettlementResult{ClassIDs: []string{}}, nil
	}

	result := &SettlementResult{ClassIDs: classIDs}
	var oversold []string
	for _, id := range classIDs {
		ok, err := e.classes.ReserveSeatTx(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("reserve seat for class %s: %w", id, err)
		}
		if ok {
			result.UpdatedResult.MatchedCount++
			result.UpdatedResult.ModifiedCount++
			continue
		}
		exists, err := e.classes.ExistsTx(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("look up class %s: %w", id, err)
		}
		if !exists {
			return nil, fmt.Errorf("class %s: %w", id, repository.ErrNotFound)
		}
		oversold = append(oversold, id)
	}
	if len(oversold) > 0 {
		e.log.Warn().Str("transaction_id", receipt.TransactionID).Strs("class_ids", oversold).Msg("settlement oversold")
		return nil, &repository.OversoldError{ClassIDs: oversold}
	}

	now := e.now()
	rec := model.EnrollmentRecord{
		UserEmail:     receipt.PayerEmail,
		ClassIDs:      classIDs,
		TransactionID: receipt.TransactionID,
		EnrolledAt:    now,
	}
	if err := e.enrollments.CreateTx(ctx, tx, &rec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			_ = tx.Rollback()
			return e.replayAfterRace(ctx, receipt)
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	result.EnrolledResult.InsertedID = rec.ID

	removed, err := e.carts.DeleteByUserAndClassesTx(ctx, tx, receipt.PayerEmail, classIDs)
	if err != nil {
		return nil, fmt.Errorf("clean up cart: %w", err)
	}
	result.DeletedResult.DeletedCount = removed

	receipt.ID = ""
	receipt.RecordedAt = now
	if err := e.payments.InsertTx(ctx, tx, &receipt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			_ = tx.Rollback()
			return e.replayAfterRace(ctx, receipt)
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	result.PaymentResult = InsertResult{InsertedID: receipt.ID, Acknowledged: true}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	committed = true

	e.log.Info().
		Str("transaction_id", receipt.TransactionID).
		Str("payer", receipt.PayerEmail).
		Int("class_count", len(classIDs)).
		Int64("cart_removed", removed).
		Msg("settlement committed")

	e.publish(ctx, queue.EnrollmentSettledEvent{
		EnrollmentID:  rec.ID,
		TransactionID: receipt.TransactionID,
		UserEmail:     receipt.PayerEmail,
		ClassIDs:      classIDs,
		Amount:        receipt.Amount.String(),
		Currency:      receipt.Currency,
		CartRemoved:   removed,
		SettledAt:     now.Format(time.RFC3339),
	})
	return result, nil
}

// replayTx returns the stored outcome for an already settled transaction
// ID, or nil when the ID is new.
func (e *Engine) replayTx(ctx context.Context, tx *sql.Tx, receipt model.PaymentReceipt) (*SettlementResult, error) {
	existing, err := e.payments.GetByTransactionIDTx(ctx, tx, receipt.TransactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up payment: %w", err)
	}
	if existing.PayerEmail != receipt.PayerEmail {
		return nil, fmt.Errorf("%w: transaction %s was settled by another payer", repository.ErrConflict, receipt.TransactionID)
	}
	rec, err := e.enrollments.GetByTransactionIDTx(ctx, tx, receipt.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("look up enrollment for transaction %s: %w", receipt.TransactionID, err)
	}
	e.log.Info().Str("transaction_id", receipt.TransactionID).Msg("settlement replayed")
	return &SettlementResult{
		PaymentResult:  InsertResult{InsertedID: existing.ID, Acknowledged: true},
		EnrolledResult: EnrolledResult{InsertedID: rec.ID},
		ClassIDs:       rec.ClassIDs,
		Replayed:       true,
	}, nil
}

// replayAfterRace handles a concurrent settlement of the same transaction
// ID that committed first.
func (e *Engine) replayAfterRace(ctx context.Context, receipt model.PaymentReceipt) (*SettlementResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replay: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	res, err := e.replayTx(ctx, tx, receipt)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: transaction %s is being settled", repository.ErrConflict, receipt.TransactionID)
	}
	return res, nil
}

// publish sends ev in the background.  Broker failures are logged and
// never affect the settlement.
func (e *Engine) publish(ctx context.Context, ev queue.EnrollmentSettledEvent) {
	if e.publisher == nil {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.publisher.PublishEnrollmentSettled(pctx, ev); err != nil {
			e.log.Warn().Err(err).Str("transaction_id", ev.TransactionID).Msg("publish enrollment.settled failed")
		}
	}()
}
