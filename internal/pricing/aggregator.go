// Package pricing derives the canonical price breakdown of a booking.
package pricing

import (
	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/shopspring/decimal"
)

var DefaultTaxRate = decimal.RequireFromString("0.15")

// Aggregator is a pure function of its inputs. Tax applies to the unit fare
// per passenger only, never to seat upgrades or extras.
type Aggregator struct {
	taxRate decimal.Decimal
	prices  map[string]decimal.Decimal
}

func New(taxRate decimal.Decimal, prices map[string]decimal.Decimal) *Aggregator {
	p := make(map[string]decimal.Decimal, len(prices))
	for id, price := range prices {
		p[id] = price
	}
	return &Aggregator{taxRate: taxRate, prices: p}
}

func (a *Aggregator) TaxRate() decimal.Decimal {
	return a.taxRate
}

// ExtraPrice returns the catalog price of an extra and whether it is known.
func (a *Aggregator) ExtraPrice(id string) (decimal.Decimal, bool) {
	p, ok := a.prices[id]
	return p, ok
}

func (a *Aggregator) Compute(item domain.SelectedItem, passengers int, seats []domain.SeatAssignment, extras []domain.ExtraSelection) domain.PriceBreakdown {
	n := decimal.NewFromInt(int64(passengers))

	base := item.UnitPrice.Mul(n).Round(2)
	taxes := item.UnitPrice.Mul(a.taxRate).Mul(n).Round(2)

	seatTotal := decimal.Zero
	for _, s := range seats {
		seatTotal = seatTotal.Add(s.Price)
	}
	seatTotal = seatTotal.Round(2)

	extrasTotal := decimal.Zero
	for _, e := range extras {
		price, ok := a.prices[e.ExtraID]
		if !ok || e.Quantity <= 0 {
			continue
		}
		extrasTotal = extrasTotal.Add(price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	extrasTotal = extrasTotal.Round(2)

	return domain.PriceBreakdown{
		BaseFare:    base,
		Taxes:       taxes,
		SeatTotal:   seatTotal,
		ExtrasTotal: extrasTotal,
		GrandTotal:  base.Add(taxes).Add(seatTotal).Add(extrasTotal),
	}
}

// Quote prices whatever a flow snapshot holds so far.
func (a *Aggregator) Quote(snap *domain.FlowSnapshot) domain.PriceBreakdown {
	if snap == nil || snap.SelectedItem == nil {
		return domain.PriceBreakdown{}
	}
	return a.Compute(*snap.SelectedItem, len(snap.Passengers), snap.Seats, snap.Extras)
}
