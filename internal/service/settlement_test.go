package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/class-enrollment/internal/repository"
)

func TestSettleMovesCountersForEveryClass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 5, 0)
	f.addClass(t, "b", "ann@example.com", 2, 7)
	f.addClass(t, "c", "bob@example.com", 9, 1)
	f.addToCart(t, "p@example.com", "a", "b", "c")

	res, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_1", "p@example.com"),
		Purchase: Explicit("b", "a", "a"),
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if res.UpdatedResult.MatchedCount != 2 || res.UpdatedResult.ModifiedCount != 2 {
		t.Errorf("updatedResult = %+v, want 2/2", res.UpdatedResult)
	}
	if res.DeletedResult.DeletedCount != 2 {
		t.Errorf("deletedCount = %d, want 2", res.DeletedResult.DeletedCount)
	}
	if !res.PaymentResult.Acknowledged || res.PaymentResult.InsertedID == "" || res.EnrolledResult.InsertedID == "" {
		t.Errorf("result = %+v", res)
	}
	if a := f.class(t, "a"); a.AvailableSeats != 4 || a.TotalEnrolled != 1 {
		t.Errorf("a = (%d, %d), want (4, 1)", a.AvailableSeats, a.TotalEnrolled)
	}
	if b := f.class(t, "b"); b.AvailableSeats != 1 || b.TotalEnrolled != 8 {
		t.Errorf("b = (%d, %d), want (1, 8)", b.AvailableSeats, b.TotalEnrolled)
	}
	if c := f.class(t, "c"); c.AvailableSeats != 9 || c.TotalEnrolled != 1 {
		t.Errorf("c changed: (%d, %d)", c.AvailableSeats, c.TotalEnrolled)
	}
	if got := f.cartIDs(t, "p@example.com"); len(got) != 1 || got[0] != "c" {
		t.Errorf("cart = %v, want [c]", got)
	}
	if n := f.count(t, "enrollments"); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}
	if n := f.count(t, "enrollment_classes"); n != 2 {
		t.Errorf("enrollment_classes = %d, want 2", n)
	}
	if n := f.count(t, "payments"); n != 1 {
		t.Errorf("payments = %d, want 1", n)
	}

	select {
	case ev := <-f.publisher.events:
		if ev.TransactionID != "pi_1" || ev.EnrollmentID != res.EnrolledResult.InsertedID || len(ev.ClassIDs) != 2 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Error("no enrollment.settled event published")
	}
}

func TestSettleScenarioExplicitSingleClass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "x", "ann@example.com", 3, 10)
	f.addToCart(t, "p@example.com", "x")

	res, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_x", "p@example.com"),
		Purchase: Explicit("x"),
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	x := f.class(t, "x")
	if x.AvailableSeats != 2 || x.TotalEnrolled != 11 {
		t.Errorf("x = (%d, %d), want (2, 11)", x.AvailableSeats, x.TotalEnrolled)
	}
	records, err := f.enrollments.ListByUser(context.Background(), "p@example.com")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(records) != 1 || len(records[0].ClassIDs) != 1 || records[0].ClassIDs[0] != "x" || records[0].ID != res.EnrolledResult.InsertedID {
		t.Errorf("records = %+v", records)
	}
	if got := f.cartIDs(t, "p@example.com"); len(got) != 0 {
		t.Errorf("cart = %v, want empty", got)
	}
}

func TestSettleWholeCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 1, 0)
	f.addClass(t, "b", "ann@example.com", 1, 0)
	f.addToCart(t, "p@example.com", "a", "b")
	f.addToCart(t, "other@example.com", "a")

	res, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_cart", "P@Example.com"),
		Purchase: WholeCart(),
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.UpdatedResult.ModifiedCount != 2 || res.DeletedResult.DeletedCount != 2 {
		t.Errorf("result = %+v", res)
	}
	if got := f.cartIDs(t, "other@example.com"); len(got) != 1 {
		t.Errorf("other payer's cart = %v, want untouched", got)
	}
}

func TestSettleEmptyCartIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 1, 0)

	res, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_empty", "p@example.com"),
		Purchase: WholeCart(),
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.PaymentResult.Acknowledged || res.PaymentResult.InsertedID != "" ||
		res.DeletedResult.DeletedCount != 0 || res.EnrolledResult.InsertedID != "" ||
		res.UpdatedResult.MatchedCount != 0 || res.UpdatedResult.ModifiedCount != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
	for _, table := range []string{"enrollments", "payments"} {
		if n := f.count(t, table); n != 0 {
			t.Errorf("%s = %d, want 0", table, n)
		}
	}
}

func TestSettleOversoldHasNoSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "open", "ann@example.com", 4, 2)
	f.addClass(t, "full", "ann@example.com", 0, 30)
	f.addToCart(t, "p@example.com", "open", "full")

	_, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_over", "p@example.com"),
		Purchase: WholeCart(),
	})
	var over *repository.OversoldError
	if !errors.As(err, &over) || !errors.Is(err, repository.ErrOversold) {
		t.Fatalf("err = %v, want OversoldError", err)
	}
	if len(over.ClassIDs) != 1 || over.ClassIDs[0] != "full" {
		t.Errorf("oversold ids = %v, want [full]", over.ClassIDs)
	}
	if c := f.class(t, "open"); c.AvailableSeats != 4 || c.TotalEnrolled != 2 {
		t.Errorf("open = (%d, %d), want unchanged (4, 2)", c.AvailableSeats, c.TotalEnrolled)
	}
	if c := f.class(t, "full"); c.AvailableSeats != 0 || c.TotalEnrolled != 30 {
		t.Errorf("full = (%d, %d), want unchanged (0, 30)", c.AvailableSeats, c.TotalEnrolled)
	}
	if got := f.cartIDs(t, "p@example.com"); len(got) != 2 {
		t.Errorf("cart = %v, want both entries kept", got)
	}
	for _, table := range []string{"enrollments", "enrollment_classes", "payments"} {
		if n := f.count(t, table); n != 0 {
			t.Errorf("%s = %d, want 0", table, n)
		}
	}
}

func TestSettleUnknownClassRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 4, 0)

	_, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_missing", "p@example.com"),
		Purchase: Explicit("a", "ghost"),
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if c := f.class(t, "a"); c.AvailableSeats != 4 {
		t.Errorf("a seats = %d, want 4", c.AvailableSeats)
	}
	if n := f.count(t, "payments"); n != 0 {
		t.Errorf("payments = %d, want 0", n)
	}
}

func TestSettleReplayIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 5, 0)
	req := SettlementRequest{Receipt: receipt("pi_dup", "p@example.com"), Purchase: Explicit("a")}

	first, err := f.engine.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	second, err := f.engine.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Settle: %v", err)
	}
	if !second.Replayed || second.EnrolledResult.InsertedID != first.EnrolledResult.InsertedID {
		t.Errorf("second = %+v, want replay of %s", second, first.EnrolledResult.InsertedID)
	}
	if !second.PaymentResult.Acknowledged || second.PaymentResult.InsertedID != first.PaymentResult.InsertedID {
		t.Errorf("replayed payment = %+v, want acknowledged %s", second.PaymentResult, first.PaymentResult.InsertedID)
	}
	if second.UpdatedResult.ModifiedCount != 0 || second.DeletedResult.DeletedCount != 0 {
		t.Errorf("replay reported writes: %+v", second)
	}
	if c := f.class(t, "a"); c.AvailableSeats != 4 || c.TotalEnrolled != 1 {
		t.Errorf("a = (%d, %d), want (4, 1)", c.AvailableSeats, c.TotalEnrolled)
	}
	if n := f.count(t, "enrollments"); n != 1 {
		t.Errorf("enrollments = %d, want 1", n)
	}

	_, err = f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_dup", "thief@example.com"),
		Purchase: Explicit("a"),
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("other payer err = %v, want ErrConflict", err)
	}
}

func TestSettleRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addClass(t, "a", "ann@example.com", 5, 0)

	pending := receipt("pi_p", "p@example.com")
	pending.Status = "requires_payment_method"
	negative := receipt("pi_n", "p@example.com")
	negative.Amount = negative.Amount.Neg()

	tests := []struct {
		name string
		req  SettlementRequest
		want error
	}{
		{"explicit with no ids", SettlementRequest{Receipt: receipt("pi_e", "p@example.com"), Purchase: Explicit()}, ErrInvalidRequest},
		{"unset purchase", SettlementRequest{Receipt: receipt("pi_u", "p@example.com")}, ErrInvalidRequest},
		{"blank class id", SettlementRequest{Receipt: receipt("pi_b", "p@example.com"), Purchase: Explicit("a", " ")}, ErrInvalidRequest},
		{"missing payer", SettlementRequest{Receipt: receipt("pi_m", ""), Purchase: Explicit("a")}, ErrInvalidRequest},
		{"missing transaction", SettlementRequest{Receipt: receipt("", "p@example.com"), Purchase: Explicit("a")}, ErrInvalidRequest},
		{"negative amount", SettlementRequest{Receipt: negative, Purchase: Explicit("a")}, ErrInvalidRequest},
		{"unconfirmed payment", SettlementRequest{Receipt: pending, Purchase: Explicit("a")}, ErrPaymentNotConfirmed},
	}
	for _, tt := range tests {
		if _, err := f.engine.Settle(context.Background(), tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
	if c := f.class(t, "a"); c.AvailableSeats != 5 {
		t.Errorf("seats moved on invalid input: %d", c.AvailableSeats)
	}
}

func TestSettlePublishFailureDoesNotFail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.addClass(t, "a", "ann@example.com", 1, 0)

	if _, err := f.engine.Settle(context.Background(), SettlementRequest{
		Receipt:  receipt("pi_pub", "p@example.com"),
		Purchase: Explicit("a"),
	}); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	select {
	case <-f.publisher.events:
	case <-time.After(2 * time.Second):
		t.Error("publisher not called")
	}
}

func TestSettleConcurrentNeverOversells(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	const seats = 3
	const buyers = 12
	f.addClass(t, "hot", "ann@example.com", seats, 0)

	var wg sync.WaitGroup
	var ok, oversold, other int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Settle(context.Background(), SettlementRequest{
				Receipt:  receipt(fmt.Sprintf("pi_%d", i), fmt.Sprintf("u%d@example.com", i)),
				Purchase: Explicit("hot"),
			})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, repository.ErrOversold):
				atomic.AddInt32(&oversold, 1)
			default:
				atomic.AddInt32(&other, 1)
				t.Errorf("buyer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if ok != seats || oversold != buyers-seats || other != 0 {
		t.Errorf("ok=%d oversold=%d other=%d, want %d/%d/0", ok, oversold, other, seats, buyers-seats)
	}
	c := f.class(t, "hot")
	if c.AvailableSeats != 0 || c.TotalEnrolled != seats {
		t.Errorf("hot = (%d, %d), want (0, %d)", c.AvailableSeats, c.TotalEnrolled, seats)
	}
	if n := f.count(t, "enrollments"); n != seats {
		t.Errorf("enrollments = %d, want %d", n, seats)
	}
}

func TestPurchaseString(t *testing.T) {
	t.Parallel()
	if got := WholeCart().String(); got != "whole-cart" {
		t.Errorf("WholeCart = %q", got)
	}
	if got := Explicit("b", "a").String(); got != "explicit[b a]" {
		t.Errorf("Explicit = %q", got)
	}
	var zero Purchase
	if zero.IsWholeCart() || zero.String() != "unset" {
		t.Errorf("zero purchase = %q", zero.String())
	}
}
