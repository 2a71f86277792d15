package worker

import (
	"context"
	"fmt"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/sirupsen/logrus"
)

type Ledger interface {
	Record(ctx context.Context, entry domain.LedgerEntry) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, event kafka.FlowEvent) error
}

// EventHandler audits every flow event and notifies the customer once per
// event. Without a ledger every delivery is notified.
type EventHandler struct {
	ledger   Ledger
	notifier Notifier
	logger   logrus.FieldLogger
}

func NewEventHandler(ledger Ledger, notifier Notifier, logger logrus.FieldLogger) *EventHandler {
	return &EventHandler{ledger: ledger, notifier: notifier, logger: logger}
}

func (h *EventHandler) Handle(ctx context.Context, event kafka.FlowEvent) error {
	log := h.logger.WithFields(logrus.Fields{"event": event.Type, "order_id": event.OrderID})
	if event.OrderID == "" || event.Type == "" {
		log.Warn("dropping incomplete flow event")
		return nil
	}

	if h.ledger != nil {
		inserted, err := h.ledger.Record(ctx, domain.LedgerEntry{
			EventID:        eventID(event),
			OrderID:        event.OrderID,
			EventType:      event.Type,
			Status:         domain.OrderStatus(event.Status),
			Amount:         event.Amount,
			Currency:       event.Currency,
			FlowID:         event.FlowID,
			IdempotencyKey: event.IdempotencyKey,
			RecordedAt:     event.OccurredAt,
		})
		if err != nil {
			return err
		}
		if !inserted {
			log.Debug("duplicate flow event ignored")
			return nil
		}
	}

	return h.notifier.Send(ctx, event)
}

// eventID falls back to a key derived from the event itself for producers
// that predate event ids, so their redeliveries still collapse.
func eventID(event kafka.FlowEvent) string {
	if event.EventID != "" {
		return event.EventID
	}
	return fmt.Sprintf("%s:%s:%d", event.OrderID, event.Type, event.OccurredAt.UnixNano())
}
