package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PassengerKind string

const (
	PassengerAdult  PassengerKind = "adult"
	PassengerChild  PassengerKind = "child"
	PassengerInfant PassengerKind = "infant"
)

type Passenger struct {
	Kind           PassengerKind `json:"kind" validate:"required,oneof=adult child infant"`
	Title          string        `json:"title" validate:"required"`
	FirstName      string        `json:"first_name" validate:"required"`
	LastName       string        `json:"last_name" validate:"required"`
	DateOfBirth    string        `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	DocumentNumber string        `json:"document_number" validate:"required,document"`
	Nationality    string        `json:"nationality" validate:"required"`
}

type SeatTier string

const (
	SeatTierStandard     SeatTier = "standard"
	SeatTierExtraLegroom SeatTier = "extra-legroom"
	SeatTierPremium      SeatTier = "premium"
)

type SeatAssignment struct {
	SeatID string          `json:"seat_id"`
	Tier   SeatTier        `json:"tier"`
	Price  decimal.Decimal `json:"price"`
}

// ExtraSelection never carries a zero quantity: zero means removed.
type ExtraSelection struct {
	ExtraID  string `json:"extra_id"`
	Quantity int    `json:"quantity"`
}

// Step is a state of the booking wizard.
type Step string

const (
	StepPassengers Step = "passengers"
	StepSeats      Step = "seats"
	StepExtras     Step = "extras"
	StepReview     Step = "review"
	StepSubmitted  Step = "submitted"
)

// stepOrder is the wizard's only transition table: saving a step moves the
// flow to the one after it.
var stepOrder = []Step{StepPassengers, StepSeats, StepExtras, StepReview, StepSubmitted}

// Index is the position of the step in the wizard, -1 for unknown steps.
func (s Step) Index() int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following step; the submitted step has none.
func (s Step) Next() (Step, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stepOrder) {
		return "", false
	}
	return stepOrder[i+1], true
}

// Before reports whether s comes strictly before o.
func (s Step) Before(o Step) bool {
	return s.Index() < o.Index()
}

func ParseStep(v string) (Step, error) {
	s := Step(v)
	if s.Index() < 0 {
		return "", fmt.Errorf("unknown booking step %q", v)
	}
	return s, nil
}

// FlowSnapshot is the accumulated state of one booking flow.
type FlowSnapshot struct {
	SelectedItem   *SelectedItem     `json:"selected_item,omitempty"`
	Passengers     []Passenger       `json:"passengers"`
	Seats          []SeatAssignment  `json:"seats"`
	Extras         []ExtraSelection  `json:"extras"`
	Step           Step              `json:"step"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Submitted      *CheckoutSnapshot `json:"submitted,omitempty"`
}

// CurrentStep defaults to the first step when nothing has been recorded.
func (s *FlowSnapshot) CurrentStep() Step {
	if s == nil || s.Step == "" {
		return StepPassengers
	}
	return s.Step
}
