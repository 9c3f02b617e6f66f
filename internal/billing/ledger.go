package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Receipt is a successful payment notice as reported by the provider.
type Receipt struct {
	ChargeID   string    `db:"charge_id"`
	UserID     int64     `db:"user_id"`
	Payload    string    `db:"payload"`
	Amount     int       `db:"amount"`
	Currency   string    `db:"currency"`
	ReceivedAt time.Time `db:"received_at"`
}

// Ledger remembers charge ids. Record reports false when the charge id was
// already seen.
type Ledger interface {
	Record(ctx context.Context, r Receipt) (bool, error)
	Count(ctx context.Context) (int, error)
}

// MemoryLedger keeps charge ids for the process lifetime.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]Receipt
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]Receipt)}
}

// Record stores r unless its charge id is known.
func (l *MemoryLedger) Record(_ context.Context, r Receipt) (bool, error) {
	if r.ChargeID == "" {
		return false, fmt.Errorf("ledger: empty charge id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[r.ChargeID]; ok {
		return false, nil
	}
	l.seen[r.ChargeID] = r
	return true, nil
}

// Count returns the number of recorded receipts.
func (l *MemoryLedger) Count(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen), nil
}

// SQLLedger stores receipts in the charge_receipts table.
type SQLLedger struct {
	db *sqlx.DB
}

// NewSQLLedger wraps an open database with applied migrations.
func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

const insertReceipt = `INSERT INTO charge_receipts (charge_id, user_id, payload, amount, currency, received_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (charge_id) DO NOTHING`

// Record inserts r; a conflicting charge id leaves the table untouched.
func (l *SQLLedger) Record(ctx context.Context, r Receipt) (bool, error) {
	if r.ChargeID == "" {
		return false, fmt.Errorf("ledger: empty charge id")
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	res, err := l.db.ExecContext(ctx, l.db.Rebind(insertReceipt),
		r.ChargeID, r.UserID, r.Payload, r.Amount, r.Currency, r.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("ledger: insert receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger: rows affected: %w", err)
	}
	return n == 1, nil
}

// Count returns the number of stored receipts.
func (l *SQLLedger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM charge_receipts"); err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}

// Get loads a receipt by charge id.
func (l *SQLLedger) Get(ctx context.Context, chargeID string) (Receipt, error) {
	var r Receipt
	q := l.db.Rebind(`SELECT charge_id, user_id, payload, amount, currency, received_at FROM charge_receipts WHERE charge_id = ?`)
	if err := l.db.GetContext(ctx, &r, q, chargeID); err != nil {
		return Receipt{}, fmt.Errorf("ledger: get %s: %w", chargeID, err)
	}
	return r, nil
}
