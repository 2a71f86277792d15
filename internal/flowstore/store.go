// Package flowstore persists the partial state of booking flows, one JSON
// value per field, scoped to a flow session.
package flowstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/sirupsen/logrus"
)

type Field string

const (
	FieldSelectedItem   Field = "selected_item"
	FieldPassengers     Field = "booking_flow_passengers"
	FieldSeats          Field = "booking_flow_seats"
	FieldExtras         Field = "booking_flow_extras"
	FieldStep           Field = "booking_flow_step"
	FieldIdempotencyKey Field = "booking_flow_idempotency_key"
	FieldSubmitted      Field = "checkout_booking"
)

// SessionStorage is a session-scoped key/value backend.
type SessionStorage interface {
	Load(ctx context.Context, flowID string) (map[string][]byte, error)
	Save(ctx context.Context, flowID string, items map[string][]byte) error
	Remove(ctx context.Context, flowID string, fields ...string) error
}

// Update is a partial snapshot: nil fields are left untouched.
type Update struct {
	SelectedItem   *domain.SelectedItem
	Passengers     *[]domain.Passenger
	Seats          *[]domain.SeatAssignment
	Extras         *[]domain.ExtraSelection
	Step           *domain.Step
	IdempotencyKey *string
	Submitted      *domain.CheckoutSnapshot
}

type Store struct {
	storage SessionStorage
	logger  logrus.FieldLogger
}

func New(storage SessionStorage, logger logrus.FieldLogger) *Store {
	return &Store{storage: storage, logger: logger}
}

// Get returns nil when nothing is stored for the flow. Missing or
// undecodable fields read as empty.
func (s *Store) Get(ctx context.Context, flowID string) (*domain.FlowSnapshot, error) {
	items, err := s.storage.Load(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	snap := &domain.FlowSnapshot{}
	s.decode(flowID, items, FieldSelectedItem, &snap.SelectedItem)
	s.decode(flowID, items, FieldPassengers, &snap.Passengers)
	s.decode(flowID, items, FieldSeats, &snap.Seats)
	s.decode(flowID, items, FieldExtras, &snap.Extras)
	s.decode(flowID, items, FieldStep, &snap.Step)
	s.decode(flowID, items, FieldIdempotencyKey, &snap.IdempotencyKey)
	s.decode(flowID, items, FieldSubmitted, &snap.Submitted)

	if snap.Step != "" && snap.Step.Index() < 0 {
		s.logger.WithFields(logrus.Fields{"flow_id": flowID, "step": snap.Step}).Warn("flowstore: unknown step ignored")
		snap.Step = ""
	}
	return snap, nil
}

// Put shallow-merges the update into the stored flow in a single write.
func (s *Store) Put(ctx context.Context, flowID string, u Update) error {
	items := make(map[string][]byte)
	var err error
	encode := func(f Field, v any) {
		if err != nil {
			return
		}
		var data []byte
		if data, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("encode %s: %w", f, err)
			return
		}
		items[string(f)] = data
	}

	if u.SelectedItem != nil {
		encode(FieldSelectedItem, u.SelectedItem)
	}
	if u.Passengers != nil {
		encode(FieldPassengers, *u.Passengers)
	}
	if u.Seats != nil {
		encode(FieldSeats, *u.Seats)
	}
	if u.Extras != nil {
		encode(FieldExtras, *u.Extras)
	}
	if u.Step != nil {
		encode(FieldStep, *u.Step)
	}
	if u.IdempotencyKey != nil {
		encode(FieldIdempotencyKey, *u.IdempotencyKey)
	}
	if u.Submitted != nil {
		encode(FieldSubmitted, u.Submitted)
	}
	if err != nil {
		return err
	}

	if err := s.storage.Save(ctx, flowID, items); err != nil {
		return fmt.Errorf("save flow %s: %w", flowID, err)
	}
	return nil
}

// Clear removes the given fields, or the whole flow when none are given.
func (s *Store) Clear(ctx context.Context, flowID string, fields ...Field) error {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}
	if err := s.storage.Remove(ctx, flowID, names...); err != nil {
		return fmt.Errorf("clear flow %s: %w", flowID, err)
	}
	return nil
}

func (s *Store) decode(flowID string, items map[string][]byte, f Field, dst any) {
	data, ok := items[string(f)]
	if !ok || len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"flow_id": flowID, "field": f}).Warn("flowstore: discarding undecodable field")
	}
}
