package domain

import "github.com/shopspring/decimal"

// Extra is a paid add-on that can be selected with a quantity.
type Extra struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

func DefaultExtras() []Extra {
	return []Extra{
		{ID: "baggage", Name: "Extra Baggage", Description: "Additional 23kg checked baggage allowance", Price: decimal.NewFromInt(50)},
		{ID: "meal", Name: "Premium Meal", Description: "Upgrade to gourmet in-flight dining", Price: decimal.NewFromInt(25)},
		{ID: "insurance", Name: "Travel Insurance", Description: "Comprehensive travel coverage", Price: decimal.NewFromInt(35)},
		{ID: "priority", Name: "Priority Boarding", Description: "Be among the first to board", Price: decimal.NewFromInt(15)},
		{ID: "lounge", Name: "Airport Lounge Access", Description: "Relax before your flight", Price: decimal.NewFromInt(45)},
		{ID: "wifi", Name: "In-Flight WiFi", Description: "Stay connected throughout the journey", Price: decimal.NewFromInt(20)},
	}
}

// ExtraPrices indexes a catalog by extra id.
func ExtraPrices(extras []Extra) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(extras))
	for _, e := range extras {
		prices[e.ID] = e.Price
	}
	return prices
}
