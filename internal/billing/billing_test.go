package billing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tarotbot/core/database"
	"github.com/m3rciful/tarotbot/internal/tarot"
)

type fakeSender struct {
	to   tele.Recipient
	what interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.to, f.what = to, what
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{ID: 1}, nil
}

func TestRequestPaymentBuildsStarsInvoice(t *testing.T) {
	s := &fakeSender{}
	g := NewTelegramGateway(s, "")
	inv := Catalog{StandardPrice: 100, PremiumPrice: 300}.Invoice(tarot.TierPremium)
	if err := g.RequestPayment(context.Background(), 42, inv); err != nil {
		t.Fatalf("RequestPayment: %v", err)
	}
	got, ok := s.what.(*tele.Invoice)
	if !ok {
		t.Fatalf("expected *tele.Invoice, got %T", s.what)
	}
	if got.Currency != "XTR" || got.Payload != "premium" || got.Token != "" {
		t.Fatalf("unexpected invoice %+v", got)
	}
	if len(got.Prices) != 1 || got.Prices[0].Amount != 300 {
		t.Fatalf("unexpected prices %+v", got.Prices)
	}
	if s.to.Recipient() != "42" {
		t.Fatalf("unexpected recipient %q", s.to.Recipient())
	}
}

func TestRequestPaymentFailure(t *testing.T) {
	g := NewTelegramGateway(&fakeSender{err: errors.New("bad request")}, "")
	err := g.RequestPayment(context.Background(), 1, Catalog{StandardPrice: 100}.Invoice(tarot.TierStandard))
	if !errors.Is(err, ErrInvoiceFailed) {
		t.Fatalf("expected ErrInvoiceFailed, got %v", err)
	}
}

type fakeAccepter struct {
	calls int
	panic bool
}

func (f *fakeAccepter) Accept(q *tele.PreCheckoutQuery, errorMessage ...string) error {
	f.calls++
	if f.panic {
		panic("network stack exploded")
	}
	if len(errorMessage) > 0 {
		return errors.New("rejected")
	}
	return nil
}

func TestApproveCheckoutUnconditional(t *testing.T) {
	a := &fakeAccepter{}
	q := &tele.PreCheckoutQuery{ID: "q1", Payload: "unknown", Currency: "XTR", Total: 1}
	if err := ApproveCheckout(context.Background(), a, q); err != nil {
		t.Fatalf("ApproveCheckout: %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("expected one accept call, got %d", a.calls)
	}
}

func TestApproveCheckoutRecoversPanic(t *testing.T) {
	err := ApproveCheckout(context.Background(), &fakeAccepter{panic: true}, &tele.PreCheckoutQuery{ID: "q"})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestMemoryLedgerDedup(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Record(ctx, Receipt{ChargeID: "ch_1", UserID: 7})
			if err != nil {
				t.Errorf("Record: %v", err)
				return
			}
			if ok {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if fresh != 1 {
		t.Fatalf("expected exactly one fresh record, got %d", fresh)
	}
	if n, _ := l.Count(ctx); n != 1 {
		t.Fatalf("Count = %d", n)
	}
	if _, err := l.Record(ctx, Receipt{}); err == nil {
		t.Fatal("expected error for empty charge id")
	}
}

func TestSQLLedgerSQLite(t *testing.T) {
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "ledger.db")}
	if err := database.Migrate(cfg); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	l := NewSQLLedger(db)
	ctx := context.Background()
	r := Receipt{ChargeID: "stxABC", UserID: 99, Payload: "standard", Amount: 100, Currency: Currency}
	ok, err := l.Record(ctx, r)
	if err != nil || !ok {
		t.Fatalf("first Record = %v, %v", ok, err)
	}
	ok, err = l.Record(ctx, r)
	if err != nil || ok {
		t.Fatalf("duplicate Record = %v, %v", ok, err)
	}
	got, err := l.Get(ctx, "stxABC")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != 99 || got.Amount != 100 || got.Payload != "standard" {
		t.Fatalf("unexpected receipt %+v", got)
	}
	if n, err := l.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}
