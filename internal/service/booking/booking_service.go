package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/flowstore"
	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/Domenick1991/journeygate/internal/pricing"
	"github.com/Domenick1991/journeygate/internal/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SourceSubmitted marks a checkout snapshot written by a successful submit.
const SourceSubmitted = "submitted-snapshot"

type FlowUseCase interface {
	Start(ctx context.Context, flowID, flightID string) (*FlowState, error)
	State(ctx context.Context, flowID string) (*FlowState, error)
	SavePassengers(ctx context.Context, flowID string, passengers []domain.Passenger) (*FlowState, error)
	SaveSeats(ctx context.Context, flowID string, seatIDs []string) (*FlowState, error)
	SaveExtras(ctx context.Context, flowID string, extras []domain.ExtraSelection) (*FlowState, error)
	Back(ctx context.Context, flowID string, step domain.Step) (*FlowState, error)
	Submit(ctx context.Context, flowID, userID string) (*domain.CheckoutSnapshot, error)
	Abandon(ctx context.Context, flowID string) error
}

type Store interface {
	Get(ctx context.Context, flowID string) (*domain.FlowSnapshot, error)
	Put(ctx context.Context, flowID string, u flowstore.Update) error
	Clear(ctx context.Context, flowID string, fields ...flowstore.Field) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type Inventory interface {
	GetFlight(ctx context.Context, flightID string) (domain.SelectedItem, error)
}

type Bookings interface {
	CreateBooking(ctx context.Context, idempotencyKey string, req upstream.BookingRequest) (upstream.BookingRecord, error)
}

type Events interface {
	Emit(ctx context.Context, event kafka.FlowEvent)
}

// FlowState is what the wizard renders: the current step, the data entered
// so far and a live quote.
type FlowState struct {
	Step     domain.Step           `json:"step"`
	Flow     *domain.FlowSnapshot  `json:"flow"`
	Quote    domain.PriceBreakdown `json:"quote"`
	Currency string                `json:"currency"`
}

type FlowService struct {
	store     Store
	locker    Locker
	inventory Inventory
	bookings  Bookings
	pricer    *pricing.Aggregator
	events    Events
	logger    logrus.FieldLogger
	validate  *validator.Validate

	classType string
	currency  string
	lockTTL   time.Duration
	newKey    func() string
	now       func() time.Time
}

type FlowServiceOption func(*FlowService)

func WithClassType(classType string) FlowServiceOption {
	return func(s *FlowService) {
		s.classType = classType
	}
}

func WithCurrency(currency string) FlowServiceOption {
	return func(s *FlowService) {
		s.currency = currency
	}
}

func WithLockTTL(ttl time.Duration) FlowServiceOption {
	return func(s *FlowService) {
		s.lockTTL = ttl
	}
}

func WithKeyGenerator(gen func() string) FlowServiceOption {
	return func(s *FlowService) {
		s.newKey = gen
	}
}

func NewFlowService(
	store Store,
	locker Locker,
	inventory Inventory,
	bookings Bookings,
	pricer *pricing.Aggregator,
	events Events,
	logger logrus.FieldLogger,
	opts ...FlowServiceOption,
) *FlowService {
	s := &FlowService{
		store:     store,
		locker:    locker,
		inventory: inventory,
		bookings:  bookings,
		pricer:    pricer,
		events:    events,
		logger:    logger,
		validate:  newValidator(),
		classType: "economy",
		currency:  "USD",
		lockTTL:   30 * time.Second,
		newKey:    uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the flow to an inventory item. Starting again with the same
// item resumes the flow; a different item, or a flow that was already
// submitted, starts over.
func (s *FlowService) Start(ctx context.Context, flowID, flightID string) (*FlowState, error) {
	flightID = strings.TrimSpace(flightID)
	if flightID == "" {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "flight_id", Message: "is required"}}}
	}

	snap, err := s.store.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if snap != nil && snap.SelectedItem != nil && snap.SelectedItem.ID == flightID && snap.CurrentStep() != domain.StepSubmitted {
		return s.state(snap), nil
	}

	item, err := s.inventory.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if item.ClassType == "" {
		item.ClassType = s.classType
	}

	if snap != nil {
		if err := s.store.Clear(ctx, flowID); err != nil {
			return nil, err
		}
	}
	step := domain.StepPassengers
	if err := s.store.Put(ctx, flowID, flowstore.Update{SelectedItem: &item, Step: &step}); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"flow_id": flowID, "flight_id": flightID}).Info("booking flow started")
	return s.state(&domain.FlowSnapshot{SelectedItem: &item, Step: step}), nil
}

func (s *FlowService) State(ctx context.Context, flowID string) (*FlowState, error) {
	snap, err := s.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return s.state(snap), nil
}

func (s *FlowService) SavePassengers(ctx context.Context, flowID string, passengers []domain.Passenger) (*FlowState, error) {
	snap, err := s.editable(ctx, flowID, domain.StepPassengers)
	if err != nil {
		return nil, err
	}

	valid, err := s.validatePassengers(*snap.SelectedItem, passengers)
	if err != nil {
		return nil, err
	}

	empty := ""
	snap.Passengers = valid
	snap.IdempotencyKey = ""
	return s.advance(ctx, flowID, snap, domain.StepPassengers, flowstore.Update{Passengers: &valid, IdempotencyKey: &empty})
}

func (s *FlowService) SaveSeats(ctx context.Context, flowID string, seatIDs []string) (*FlowState, error) {
	snap, err := s.editable(ctx, flowID, domain.StepSeats)
	if err != nil {
		return nil, err
	}

	seats, err := assignSeats(seatIDs, len(snap.Passengers))
	if err != nil {
		return nil, err
	}

	empty := ""
	snap.Seats = seats
	snap.IdempotencyKey = ""
	return s.advance(ctx, flowID, snap, domain.StepSeats, flowstore.Update{Seats: &seats, IdempotencyKey: &empty})
}

// SaveExtras enters review. The submission key survives as long as nothing
// it covers has changed, so a retried submit stays idempotent.
func (s *FlowService) SaveExtras(ctx context.Context, flowID string, extras []domain.ExtraSelection) (*FlowState, error) {
	snap, err := s.editable(ctx, flowID, domain.StepExtras)
	if err != nil {
		return nil, err
	}

	merged, err := s.mergeExtras(extras)
	if err != nil {
		return nil, err
	}

	key := snap.IdempotencyKey
	if key == "" || !sameExtras(snap.Extras, merged) {
		key = s.newKey()
	}
	snap.Extras = merged
	snap.IdempotencyKey = key
	return s.advance(ctx, flowID, snap, domain.StepExtras, flowstore.Update{Extras: &merged, IdempotencyKey: &key})
}

// Back moves the flow to an earlier step. Data entered for later steps is
// kept.
func (s *FlowService) Back(ctx context.Context, flowID string, step domain.Step) (*FlowState, error) {
	if step.Index() < 0 || step == domain.StepSubmitted {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "step", Message: fmt.Sprintf("unknown step %q", step)}}}
	}

	snap, err := s.editable(ctx, flowID, step)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, flowID, flowstore.Update{Step: &step}); err != nil {
		return nil, err
	}
	snap.Step = step
	return s.state(snap), nil
}

func (s *FlowService) Submit(ctx context.Context, flowID, userID string) (*domain.CheckoutSnapshot, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	snap, err := s.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if snap.CurrentStep() == domain.StepSubmitted && snap.Submitted != nil {
		return snap.Submitted, nil
	}
	if snap.CurrentStep() != domain.StepReview {
		return nil, domain.ErrStepOutOfOrder
	}

	lock := "submit:" + flowID
	acquired, err := s.locker.AcquireLock(ctx, lock, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrSubmissionInProgress
	}
	defer s.release(ctx, lock)

	// Re-read under the lock: a concurrent submit may have just finished.
	if snap, err = s.load(ctx, flowID); err != nil {
		return nil, err
	}
	if snap.CurrentStep() == domain.StepSubmitted && snap.Submitted != nil {
		return snap.Submitted, nil
	}
	if snap.CurrentStep() != domain.StepReview {
		return nil, domain.ErrStepOutOfOrder
	}

	key := snap.IdempotencyKey
	if key == "" {
		key = s.newKey()
		if err := s.store.Put(ctx, flowID, flowstore.Update{IdempotencyKey: &key}); err != nil {
			return nil, err
		}
	}

	log := s.logger.WithFields(logrus.Fields{"flow_id": flowID, "idempotency_key": key})
	rec, err := s.bookings.CreateBooking(ctx, key, s.bookingRequest(snap, userID))
	if err != nil {
		log.WithError(err).Warn("order creation failed, flow stays in review")
		return nil, err
	}

	quote := s.pricer.Quote(snap)
	checkout := &domain.CheckoutSnapshot{
		Order: domain.Order{
			OrderID:        rec.Ref(),
			Status:         domain.OrderStatusPending,
			Items:          []domain.SelectedItem{*snap.SelectedItem},
			Passengers:     snap.Passengers,
			PriceBreakdown: quote,
			Currency:       s.currency,
		},
		UserID:         userID,
		Seats:          snap.Seats,
		Extras:         snap.Extras,
		IdempotencyKey: key,
		Source:         SourceSubmitted,
	}

	// The order exists upstream now; recording it must not depend on the
	// caller still waiting.
	persistCtx := context.WithoutCancel(ctx)
	step := domain.StepSubmitted
	if err := s.store.Put(persistCtx, flowID, flowstore.Update{Submitted: checkout, Step: &step}); err != nil {
		log.WithError(err).WithField("order_id", checkout.Order.OrderID).Error("failed to record submitted order")
		return nil, err
	}
	if err := s.store.Clear(persistCtx, flowID, flowstore.FieldPassengers, flowstore.FieldSeats, flowstore.FieldExtras); err != nil {
		log.WithError(err).Warn("failed to clear submitted flow steps")
	}

	s.events.Emit(persistCtx, kafka.FlowEvent{
		Type:           kafka.EventOrderCreated,
		OrderID:        checkout.Order.OrderID,
		FlowID:         flowID,
		UserID:         userID,
		Status:         string(domain.OrderStatusPending),
		Amount:         quote.GrandTotal,
		Currency:       s.currency,
		IdempotencyKey: key,
	})

	log.WithField("order_id", checkout.Order.OrderID).Info("booking flow submitted")
	return checkout, nil
}

// Abandon drops everything stored for the flow.
func (s *FlowService) Abandon(ctx context.Context, flowID string) error {
	return s.store.Clear(ctx, flowID)
}

func (s *FlowService) load(ctx context.Context, flowID string) (*domain.FlowSnapshot, error) {
	snap, err := s.store.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.SelectedItem == nil {
		return nil, domain.ErrFlowNotStarted
	}
	return snap, nil
}

// editable loads a flow whose given step may be changed: the step must have
// been reached and the flow must not be submitted yet.
func (s *FlowService) editable(ctx context.Context, flowID string, step domain.Step) (*domain.FlowSnapshot, error) {
	snap, err := s.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	current := snap.CurrentStep()
	if current == domain.StepSubmitted {
		return nil, domain.ErrFlowSubmitted
	}
	if current.Before(step) {
		return nil, domain.ErrStepOutOfOrder
	}
	return snap, nil
}

// advance moves the flow to the step after the one just saved.
func (s *FlowService) advance(ctx context.Context, flowID string, snap *domain.FlowSnapshot, saved domain.Step, u flowstore.Update) (*FlowState, error) {
	next, ok := saved.Next()
	if !ok {
		return nil, errors.New("no transition from step " + string(saved))
	}
	u.Step = &next
	if err := s.store.Put(ctx, flowID, u); err != nil {
		return nil, err
	}
	snap.Step = next
	return s.state(snap), nil
}

func (s *FlowService) state(snap *domain.FlowSnapshot) *FlowState {
	return &FlowState{
		Step:     snap.CurrentStep(),
		Flow:     snap,
		Quote:    s.pricer.Quote(snap),
		Currency: s.currency,
	}
}

func (s *FlowService) bookingRequest(snap *domain.FlowSnapshot, userID string) upstream.BookingRequest {
	passengers := make([]upstream.BookingPassenger, 0, len(snap.Passengers))
	for _, p := range snap.Passengers {
		passengers = append(passengers, upstream.BookingPassenger{
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			DateOfBirth:    p.DateOfBirth,
			PassportNumber: p.DocumentNumber,
		})
	}

	addOns := make([]string, 0, len(snap.Extras))
	for _, e := range snap.Extras {
		for i := 0; i < e.Quantity; i++ {
			addOns = append(addOns, e.ExtraID)
		}
	}

	return upstream.BookingRequest{
		FlightID:   snap.SelectedItem.ID,
		UserID:     userID,
		Passengers: passengers,
		ClassType:  s.classType,
		AddOns:     addOns,
	}
}

func (s *FlowService) release(ctx context.Context, lock string) {
	if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lock); err != nil {
		s.logger.WithError(err).WithField("lock", lock).Warn("failed to release lock")
	}
}

func sameExtras(a, b []domain.ExtraSelection) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ FlowUseCase = (*FlowService)(nil)
