package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/flowstore"
	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/Domenick1991/journeygate/internal/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type CheckoutUseCase interface {
	Resolve(ctx context.Context, flowID, orderID string) (*domain.CheckoutSnapshot, error)
	Pay(ctx context.Context, flowID, orderID string, details PaymentDetails) (*domain.CheckoutSnapshot, error)
}

type Store interface {
	Get(ctx context.Context, flowID string) (*domain.FlowSnapshot, error)
	Clear(ctx context.Context, flowID string, fields ...flowstore.Field) error
}

type Receipts interface {
	Get(ctx context.Context, orderID string) (*domain.CheckoutSnapshot, error)
	Put(ctx context.Context, snap *domain.CheckoutSnapshot) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

type Payments interface {
	ProcessPayment(ctx context.Context, idempotencyKey string, req upstream.PaymentRequest) (upstream.PaymentResult, error)
}

type Events interface {
	Emit(ctx context.Context, event kafka.FlowEvent)
}

type CheckoutService struct {
	resolvers []Resolver
	store     Store
	receipts  Receipts
	locker    Locker
	payments  Payments
	events    Events
	logger    logrus.FieldLogger
	validate  *validator.Validate
	currency  string
	lockTTL   time.Duration
}

type CheckoutServiceOption func(*CheckoutService)

func WithCurrency(currency string) CheckoutServiceOption {
	return func(s *CheckoutService) {
		s.currency = currency
	}
}

func WithLockTTL(ttl time.Duration) CheckoutServiceOption {
	return func(s *CheckoutService) {
		s.lockTTL = ttl
	}
}

// NewCheckoutService tries the resolvers in the given order.
func NewCheckoutService(
	resolvers []Resolver,
	store Store,
	receipts Receipts,
	locker Locker,
	payments Payments,
	events Events,
	logger logrus.FieldLogger,
	opts ...CheckoutServiceOption,
) *CheckoutService {
	s := &CheckoutService{
		resolvers: resolvers,
		store:     store,
		receipts:  receipts,
		locker:    locker,
		payments:  payments,
		events:    events,
		logger:    logger,
		validate:  newValidator(),
		currency:  "USD",
		lockTTL:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the order from the first resolver that knows it, or
// ErrNoBooking.
func (s *CheckoutService) Resolve(ctx context.Context, flowID, orderID string) (*domain.CheckoutSnapshot, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "order_id", Message: "is required"}}}
	}

	for _, r := range s.resolvers {
		snap, ok, err := r.Resolve(ctx, flowID, orderID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
		if ok {
			s.logger.WithFields(logrus.Fields{"order_id": orderID, "source": r.Name()}).Debug("checkout resolved")
			return snap, nil
		}
	}
	return nil, domain.ErrNoBooking
}

// Pay charges the order once. A confirmed order is returned as is; a failed
// charge leaves the order pending and is never retried here.
func (s *CheckoutService) Pay(ctx context.Context, flowID, orderID string, details PaymentDetails) (*domain.CheckoutSnapshot, error) {
	details, err := validatePayment(s.validate, details)
	if err != nil {
		return nil, err
	}

	checkout, err := s.payable(ctx, flowID, orderID)
	if err != nil || checkout.Order.Status == domain.OrderStatusConfirmed {
		return checkout, err
	}

	lock := "pay:" + checkout.Order.OrderID
	acquired, err := s.locker.AcquireLock(ctx, lock, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrSubmissionInProgress
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lock); err != nil {
			s.logger.WithError(err).WithField("lock", lock).Warn("failed to release lock")
		}
	}()

	// A concurrent payment may have confirmed the order meanwhile.
	checkout, err = s.payable(ctx, flowID, orderID)
	if err != nil || checkout.Order.Status == domain.OrderStatusConfirmed {
		return checkout, err
	}

	order := checkout.Order
	month, year := details.ExpiryParts()
	req := upstream.PaymentRequest{
		BookingID: order.OrderID,
		Amount:    upstream.Amount(order.PriceBreakdown.GrandTotal),
		Currency:  s.currency,
		PaymentMethod: upstream.PaymentMethod{
			Type:           "credit_card",
			CardNumber:     details.CardNumber,
			ExpiryMonth:    month,
			ExpiryYear:     year,
			CVV:            details.CVV,
			CardholderName: details.CardholderName,
		},
		BillingAddress: upstream.BillingAddress{
			Street:     details.Street,
			City:       details.City,
			PostalCode: details.PostalCode,
			Country:    details.Country,
		},
	}

	log := s.logger.WithFields(logrus.Fields{"order_id": order.OrderID, "flow_id": flowID})
	persistCtx := context.WithoutCancel(ctx)
	event := kafka.FlowEvent{
		OrderID:        order.OrderID,
		FlowID:         flowID,
		UserID:         checkout.UserID,
		Amount:         order.PriceBreakdown.GrandTotal,
		Currency:       s.currency,
		IdempotencyKey: checkout.IdempotencyKey,
	}

	if _, err := s.payments.ProcessPayment(ctx, "", req); err != nil {
		log.WithError(err).Warn("payment failed, order stays pending")
		event.Type = kafka.EventPaymentFailed
		event.Status = string(domain.OrderStatusPending)
		s.events.Emit(persistCtx, event)
		return nil, err
	}

	confirmed := *checkout
	confirmed.Order.Status = domain.OrderStatusConfirmed
	if err := s.receipts.Put(persistCtx, &confirmed); err != nil {
		log.WithError(err).Error("failed to record payment receipt")
	}
	if flowID != "" && fromFlow(checkout) {
		if err := s.store.Clear(persistCtx, flowID); err != nil {
			log.WithError(err).Warn("failed to clear paid flow")
		}
	}

	event.Type = kafka.EventPaymentConfirmed
	event.Status = string(domain.OrderStatusConfirmed)
	s.events.Emit(persistCtx, event)

	log.Info("order paid")
	return &confirmed, nil
}

// fromFlow reports whether the order was resolved out of the caller's flow
// rather than looked up by id; only then does paying it finish that flow.
func fromFlow(checkout *domain.CheckoutSnapshot) bool {
	return checkout.Source == SourceSnapshot || checkout.Source == SourceReconstruction
}

func (s *CheckoutService) payable(ctx context.Context, flowID, orderID string) (*domain.CheckoutSnapshot, error) {
	checkout, err := s.Resolve(ctx, flowID, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case checkout.Order.Status == domain.OrderStatusConfirmed:
		return checkout, nil
	case checkout.Order.Status == domain.OrderStatusCancelled:
		return nil, domain.ErrOrderNotPayable
	case !checkout.Order.PriceBreakdown.GrandTotal.IsPositive():
		return nil, domain.ErrOrderNotPayable
	}
	return checkout, nil
}

var _ CheckoutUseCase = (*CheckoutService)(nil)
