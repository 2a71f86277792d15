package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS order_ledger (
    id              BIGSERIAL PRIMARY KEY,
    event_id        TEXT,
    order_id        TEXT        NOT NULL,
    event_type      TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    amount          NUMERIC(12, 2) NOT NULL DEFAULT 0,
    currency        TEXT        NOT NULL DEFAULT '',
    flow_id         TEXT        NOT NULL DEFAULT '',
    idempotency_key TEXT        NOT NULL DEFAULT '',
    recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE order_ledger ADD COLUMN IF NOT EXISTS event_id TEXT;
ALTER TABLE order_ledger DROP CONSTRAINT IF EXISTS order_ledger_order_id_event_type_idempotency_key_key;
CREATE UNIQUE INDEX IF NOT EXISTS order_ledger_event_idx ON order_ledger (event_id);
CREATE INDEX IF NOT EXISTS order_ledger_order_idx ON order_ledger (order_id, recorded_at);
`

// DB is the part of *pgxpool.Pool the ledger needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type OrderLedger interface {
	EnsureSchema(ctx context.Context) error
	Record(ctx context.Context, entry domain.LedgerEntry) (bool, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.LedgerEntry, error)
}

type PGOrderLedger struct {
	db DB
}

func NewOrderLedger(db DB) *PGOrderLedger {
	return &PGOrderLedger{db: db}
}

// OpenOrderLedger returns a ledger whose table is ready for reads and writes.
func OpenOrderLedger(ctx context.Context, db DB) (*PGOrderLedger, error) {
	ledger := NewOrderLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (r *PGOrderLedger) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("create order_ledger: %w", err)
	}
	return nil
}

// Record appends an entry. It reports false when an entry with the same
// event id was already recorded, which happens on redelivery.
func (r *PGOrderLedger) Record(ctx context.Context, e domain.LedgerEntry) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO order_ledger (event_id, order_id, event_type, status, amount, currency, flow_id, idempotency_key, recorded_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.OrderID, e.EventType, string(e.Status), e.Amount.StringFixed(2), e.Currency, e.FlowID, e.IdempotencyKey, e.RecordedAt)
	if err != nil {
		return false, fmt.Errorf("record %s for order %s: %w", e.EventType, e.OrderID, err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGOrderLedger) ListByOrder(ctx context.Context, orderID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, COALESCE(event_id, ''), order_id, event_type, status, amount::text, currency, flow_id, idempotency_key, recorded_at
		FROM order_ledger WHERE order_id=$1 ORDER BY recorded_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var (
			e      domain.LedgerEntry
			status string
			amount string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.OrderID, &e.EventType, &status, &amount, &e.Currency, &e.FlowID, &e.IdempotencyKey, &e.RecordedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse ledger amount %q: %w", amount, err)
		}
		e.Status = domain.OrderStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ OrderLedger = (*PGOrderLedger)(nil)
