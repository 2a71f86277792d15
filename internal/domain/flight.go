package domain

import "github.com/shopspring/decimal"

// SelectedItem is the inventory item being booked, as returned by the search
// service. It is immutable for the lifetime of one flow.
type SelectedItem struct {
	ID              string          `json:"id"`
	Code            string          `json:"flight_number"`
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	DepartAt        string          `json:"departure_time"`
	ArriveAt        string          `json:"arrival_time"`
	DurationMinutes int             `json:"duration_minutes"`
	UnitPrice       decimal.Decimal `json:"base_price"`
	SeatsAvailable  int             `json:"available_seats"`
	ClassType       string          `json:"class_type,omitempty"`
}
