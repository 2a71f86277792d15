// Package notify turns flow events into customer notifications. Delivery
// belongs to the notification service; the worker only records what would
// be sent.
package notify

import (
	"context"
	"fmt"

	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/sirupsen/logrus"
)

type Sender struct {
	logger logrus.FieldLogger
}

func NewSender(logger logrus.FieldLogger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.FlowEvent) error {
	subject, ok := Subject(event)
	if !ok {
		s.logger.WithField("event", event.Type).Debug("no notification for event")
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  event.UserID,
		"order_id": event.OrderID,
		"event":    event.Type,
		"amount":   event.Amount.StringFixed(2),
		"currency": event.Currency,
	}).Info(subject)
	return nil
}

// Subject is the notification title for an event type.
func Subject(event kafka.FlowEvent) (string, bool) {
	switch event.Type {
	case kafka.EventOrderCreated:
		return fmt.Sprintf("Booking %s received, awaiting payment", event.OrderID), true
	case kafka.EventPaymentConfirmed:
		return fmt.Sprintf("Booking %s confirmed", event.OrderID), true
	case kafka.EventPaymentFailed:
		return fmt.Sprintf("Payment for booking %s failed", event.OrderID), true
	default:
		return "", false
	}
}
