package checkout

import (
	"context"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/pricing"
	"github.com/Domenick1991/journeygate/internal/upstream"
)

const (
	SourceSnapshot       = "submitted-snapshot"
	SourceReconstruction = "flow-reconstruction"
	SourceBookingService = "booking-service"
)

// Resolver is one way of finding an order. ok is false when the resolver
// simply has nothing for it.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, flowID, orderID string) (snap *domain.CheckoutSnapshot, ok bool, err error)
}

type Inventory interface {
	GetFlight(ctx context.Context, flightID string) (domain.SelectedItem, error)
}

type BookingReader interface {
	GetBooking(ctx context.Context, bookingID string) (upstream.BookingRecord, error)
}

// SnapshotResolver returns what a successful payment or submit recorded:
// the order's receipt first, then the flow's own submitted snapshot.
type SnapshotResolver struct {
	store    Store
	receipts Receipts
}

func NewSnapshotResolver(store Store, receipts Receipts) *SnapshotResolver {
	return &SnapshotResolver{store: store, receipts: receipts}
}

func (r *SnapshotResolver) Name() string { return SourceSnapshot }

func (r *SnapshotResolver) Resolve(ctx context.Context, flowID, orderID string) (*domain.CheckoutSnapshot, bool, error) {
	receipt, err := r.receipts.Get(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if receipt != nil && receipt.Order.OrderID == orderID {
		return receipt, true, nil
	}

	if flowID == "" {
		return nil, false, nil
	}
	snap, err := r.store.Get(ctx, flowID)
	if err != nil {
		return nil, false, err
	}
	if snap == nil || snap.Submitted == nil || snap.Submitted.Order.OrderID != orderID {
		return nil, false, nil
	}
	return snap.Submitted, true, nil
}

// FlowResolver rebuilds the order from a flow that has not been submitted
// through this gateway.
type FlowResolver struct {
	store    Store
	pricer   *pricing.Aggregator
	currency string
}

func NewFlowResolver(store Store, pricer *pricing.Aggregator, currency string) *FlowResolver {
	return &FlowResolver{store: store, pricer: pricer, currency: currency}
}

func (r *FlowResolver) Name() string { return SourceReconstruction }

func (r *FlowResolver) Resolve(ctx context.Context, flowID, orderID string) (*domain.CheckoutSnapshot, bool, error) {
	if flowID == "" {
		return nil, false, nil
	}
	snap, err := r.store.Get(ctx, flowID)
	if err != nil {
		return nil, false, err
	}
	if snap == nil || snap.SelectedItem == nil || len(snap.Passengers) == 0 {
		return nil, false, nil
	}

	return &domain.CheckoutSnapshot{
		Order: domain.Order{
			OrderID:        orderID,
			Status:         domain.OrderStatusPending,
			Items:          []domain.SelectedItem{*snap.SelectedItem},
			Passengers:     snap.Passengers,
			PriceBreakdown: r.pricer.Quote(snap),
			Currency:       r.currency,
		},
		Seats:          snap.Seats,
		Extras:         snap.Extras,
		IdempotencyKey: snap.IdempotencyKey,
		Source:         SourceReconstruction,
	}, true, nil
}

// BookingServiceResolver asks the booking service for the order and the
// search service for its flight, then prices it locally. A 404 from either
// means the order is unknown.
type BookingServiceResolver struct {
	bookings  BookingReader
	inventory Inventory
	pricer    *pricing.Aggregator
	currency  string
}

func NewBookingServiceResolver(bookings BookingReader, inventory Inventory, pricer *pricing.Aggregator, currency string) *BookingServiceResolver {
	return &BookingServiceResolver{bookings: bookings, inventory: inventory, pricer: pricer, currency: currency}
}

func (r *BookingServiceResolver) Name() string { return SourceBookingService }

func (r *BookingServiceResolver) Resolve(ctx context.Context, _ string, orderID string) (*domain.CheckoutSnapshot, bool, error) {
	rec, err := r.bookings.GetBooking(ctx, orderID)
	if domain.IsUpstreamNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	item, err := r.inventory.GetFlight(ctx, rec.Flight())
	if domain.IsUpstreamNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	passengers := make([]domain.Passenger, 0, len(rec.Passengers))
	for _, p := range rec.Passengers {
		passengers = append(passengers, domain.Passenger{
			Kind:           domain.PassengerAdult,
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			DateOfBirth:    p.DateOfBirth,
			DocumentNumber: p.PassportNumber,
		})
	}
	extras := countAddOns(rec.AddOns)

	if ref := rec.Ref(); ref != "" {
		orderID = ref
	}
	return &domain.CheckoutSnapshot{
		Order: domain.Order{
			OrderID:        orderID,
			Status:         domain.ParseOrderStatus(rec.Status),
			Items:          []domain.SelectedItem{item},
			Passengers:     passengers,
			PriceBreakdown: r.pricer.Compute(item, len(passengers), nil, extras),
			Currency:       r.currency,
		},
		UserID: rec.UserID,
		Extras: extras,
		Source: SourceBookingService,
	}, true, nil
}

// countAddOns turns the booking service's flat add-on list back into
// quantities, keeping first-seen order.
func countAddOns(addOns []string) []domain.ExtraSelection {
	if len(addOns) == 0 {
		return nil
	}
	index := make(map[string]int)
	var out []domain.ExtraSelection
	for _, id := range addOns {
		if pos, ok := index[id]; ok {
			out[pos].Quantity++
			continue
		}
		index[id] = len(out)
		out = append(out, domain.ExtraSelection{ExtraID: id, Quantity: 1})
	}
	return out
}
