package domain

import "strings"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus maps a booking service status onto the order lifecycle.
// Anything that is neither confirmed nor cancelled is still awaiting payment.
func ParseOrderStatus(s string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed", "paid", "ticketed":
		return OrderStatusConfirmed
	case "cancelled", "canceled", "expired":
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

// Order is the server-confirmed booking created from a flow snapshot.
type Order struct {
	OrderID        string         `json:"order_id"`
	Status         OrderStatus    `json:"status"`
	Items          []SelectedItem `json:"items"`
	Passengers     []Passenger    `json:"passengers"`
	PriceBreakdown PriceBreakdown `json:"price_breakdown"`
	Currency       string         `json:"currency"`
}

// CheckoutSnapshot is the terminal state of a submitted flow: everything the
// checkout needs to display and charge an order without recomputing it.
type CheckoutSnapshot struct {
	Order          Order            `json:"order"`
	UserID         string           `json:"user_id,omitempty"`
	Seats          []SeatAssignment `json:"seats"`
	Extras         []ExtraSelection `json:"extras"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Source         string           `json:"source,omitempty"`
}
