package domain

import "github.com/shopspring/decimal"

// PriceBreakdown is always derived by the price aggregator, never edited.
type PriceBreakdown struct {
	BaseFare    decimal.Decimal `json:"base_fare"`
	Taxes       decimal.Decimal `json:"taxes"`
	SeatTotal   decimal.Decimal `json:"seat_total"`
	ExtrasTotal decimal.Decimal `json:"extras_total"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// IsZero reports whether nothing has been priced yet.
func (p PriceBreakdown) IsZero() bool {
	return p.GrandTotal.IsZero() && p.BaseFare.IsZero()
}

// Equal compares every component numerically.
func (p PriceBreakdown) Equal(o PriceBreakdown) bool {
	return p.BaseFare.Equal(o.BaseFare) &&
		p.Taxes.Equal(o.Taxes) &&
		p.SeatTotal.Equal(o.SeatTotal) &&
		p.ExtrasTotal.Equal(o.ExtrasTotal) &&
		p.GrandTotal.Equal(o.GrandTotal)
}
