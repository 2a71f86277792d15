package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one audited event in an order's lifecycle.
type LedgerEntry struct {
	ID             int64           `json:"id"`
	EventID        string          `json:"event_id"`
	OrderID        string          `json:"order_id"`
	EventType      string          `json:"event_type"`
	Status         OrderStatus     `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	FlowID         string          `json:"flow_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	RecordedAt     time.Time       `json:"recorded_at"`
}
