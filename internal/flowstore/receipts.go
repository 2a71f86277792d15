package flowstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/sirupsen/logrus"
)

// ReceiptStorage keeps receipts keyed by order id, in a namespace that flow
// ids cannot address.
type ReceiptStorage interface {
	SaveReceipt(ctx context.Context, orderID string, data []byte) error
	LoadReceipt(ctx context.Context, orderID string) ([]byte, error)
}

// Receipts records the checkout of every confirmed order.
type Receipts struct {
	storage ReceiptStorage
	logger  logrus.FieldLogger
}

func NewReceipts(storage ReceiptStorage, logger logrus.FieldLogger) *Receipts {
	return &Receipts{storage: storage, logger: logger}
}

// Get returns nil when the order has no receipt or the stored one cannot be
// decoded.
func (r *Receipts) Get(ctx context.Context, orderID string) (*domain.CheckoutSnapshot, error) {
	data, err := r.storage.LoadReceipt(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", orderID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var snap domain.CheckoutSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("flowstore: discarding undecodable receipt")
		return nil, nil
	}
	return &snap, nil
}

func (r *Receipts) Put(ctx context.Context, snap *domain.CheckoutSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := r.storage.SaveReceipt(ctx, snap.Order.OrderID, data); err != nil {
		return fmt.Errorf("save receipt %s: %w", snap.Order.OrderID, err)
	}
	return nil
}
