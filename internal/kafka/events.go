package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	EventOrderCreated     = "order_created"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentFailed    = "payment_failed"
)

// FlowEvent is published whenever an order changes state. EventID is unique
// per emission and survives redelivery.
type FlowEvent struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	OrderID        string          `json:"order_id"`
	FlowID         string          `json:"flow_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Emitter writes flow events to the events topic and mirrors them to the
// notifications topic when one is configured.
type Emitter struct {
	producer           Publisher
	topic              string
	notificationsTopic string
	logger             logrus.FieldLogger
	now                func() time.Time
}

func NewEmitter(producer Publisher, topic, notificationsTopic string, logger logrus.FieldLogger) *Emitter {
	return &Emitter{
		producer:           producer,
		topic:              topic,
		notificationsTopic: notificationsTopic,
		logger:             logger,
		now:                time.Now,
	}
}

// Emit never fails the caller: an order that exists upstream stays valid
// even if its event is lost, so publish errors are only logged.
func (e *Emitter) Emit(ctx context.Context, event FlowEvent) {
	if e == nil || e.producer == nil || e.topic == "" {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now().UTC()
	}

	log := e.logger.WithFields(logrus.Fields{"event": event.Type, "order_id": event.OrderID})
	if err := e.producer.Publish(ctx, e.topic, event.OrderID, event); err != nil {
		log.WithError(err).Warn("failed to publish flow event")
		return
	}
	if e.notificationsTopic != "" {
		if err := e.producer.Publish(ctx, e.notificationsTopic, event.OrderID, event); err != nil {
			log.WithError(err).Warn("failed to publish notification event")
		}
	}
}
