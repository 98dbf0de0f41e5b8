package service

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/database/dbtest"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// fakePublisher records published events.
type fakePublisher struct {
	events chan queue.EnrollmentSettledEvent
	err    error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(chan queue.EnrollmentSettledEvent, 64)}
}

func (f *fakePublisher) PublishEnrollmentSettled(ctx context.Context, ev queue.EnrollmentSettledEvent) error {
	f.events <- ev
	return f.err
}

type fixture struct {
	db          *sql.DB
	classes     *repository.ClassRepo
	carts       *repository.CartRepo
	enrollments *repository.EnrollmentRepo
	payments    *repository.PaymentRepo
	users       *repository.UserRepo
	apps        *repository.ApplicationRepo
	publisher   *fakePublisher
	engine      *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:          db,
		classes:     repository.NewClassRepo(db),
		carts:       repository.NewCartRepo(db),
		enrollments: repository.NewEnrollmentRepo(db),
		payments:    repository.NewPaymentRepo(db),
		users:       repository.NewUserRepo(db),
		apps:        repository.NewApplicationRepo(db),
		publisher:   newFakePublisher(),
	}
	f.engine = NewEngine(db, f.classes, f.carts, f.enrollments, f.payments, f.publisher, zerolog.Nop())
	// each settlement lands one second after the previous one
	var tick int64
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f.engine.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	return f
}

func (f *fixture) addClass(t *testing.T, id, instructor string, seats, enrolled int) {
	t.Helper()
	c := model.ClassOffering{
		ID:              id,
		InstructorEmail: instructor,
		Name:            "Class " + id,
		Image:           "https://img.example.com/" + id + ".png",
		Price:           decimal.RequireFromString("25.00"),
		AvailableSeats:  seats,
		TotalEnrolled:   enrolled,
		Status:          model.ClassApproved,
	}
	if err := f.classes.Create(context.Background(), &c); err != nil {
		t.Fatalf("create class %s: %v", id, err)
	}
}

func (f *fixture) addUser(t *testing.T, email, name, role string) {
	t.Helper()
	if err := f.users.Create(context.Background(), &model.User{Email: email, Name: name, Role: role}); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
}

func (f *fixture) addToCart(t *testing.T, email string, classIDs ...string) {
	t.Helper()
	for i, id := range classIDs {
		e := model.CartEntry{UserEmail: email, ClassID: id, AddedAt: time.Unix(int64(1000+i), 0)}
		if err := f.carts.Add(context.Background(), e); err != nil {
			t.Fatalf("add %s to cart: %v", id, err)
		}
	}
}

func (f *fixture) class(t *testing.T, id string) model.ClassOffering {
	t.Helper()
	c, err := f.classes.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get class %s: %v", id, err)
	}
	return c
}

func (f *fixture) cartIDs(t *testing.T, email string) []string {
	t.Helper()
	classes, err := f.carts.ListClassesByUser(context.Background(), email)
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func receipt(txID, payer string) model.PaymentReceipt {
	return model.PaymentReceipt{
		TransactionID: txID,
		Amount:        decimal.RequireFromString("50.00"),
		Currency:      "usd",
		PayerEmail:    payer,
		Status:        model.PaymentSucceeded,
		PaymentMethod: "card",
		RawPayload:    `{"id":"` + txID + `"}`,
	}
}

func zeroLog() zerolog.Logger { return zerolog.Nop() }
