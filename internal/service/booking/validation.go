package booking

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/go-playground/validator/v10"
)

var documentPattern = regexp.MustCompile(`^[A-Z0-9]{6,9}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		return documentPattern.MatchString(fl.Field().String())
	})
	return v
}

func normalizePassenger(p domain.Passenger) domain.Passenger {
	p.Kind = domain.PassengerKind(strings.ToLower(strings.TrimSpace(string(p.Kind))))
	if p.Kind == "" {
		p.Kind = domain.PassengerAdult
	}
	p.Title = strings.TrimSpace(p.Title)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.DocumentNumber = strings.ToUpper(strings.TrimSpace(p.DocumentNumber))
	p.Nationality = strings.TrimSpace(p.Nationality)
	return p
}

// validatePassengers normalizes every passenger and collects all field
// errors instead of stopping at the first one.
func (s *FlowService) validatePassengers(item domain.SelectedItem, passengers []domain.Passenger) ([]domain.Passenger, error) {
	verr := &domain.ValidationError{}
	if len(passengers) == 0 {
		verr.Add("passengers", "at least one passenger is required")
		return nil, verr
	}
	if item.SeatsAvailable > 0 && len(passengers) > item.SeatsAvailable {
		verr.Add("passengers", fmt.Sprintf("only %d seat(s) available on this flight", item.SeatsAvailable))
	}

	today := s.now().UTC().Format(time.DateOnly)
	out := make([]domain.Passenger, len(passengers))
	for i, p := range passengers {
		p = normalizePassenger(p)
		out[i] = p

		prefix := fmt.Sprintf("passengers[%d].", i)
		if err := s.validate.Struct(p); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return nil, err
			}
			for _, fe := range fieldErrs {
				verr.Add(prefix+fe.Field(), fieldMessage(fe))
			}
			continue
		}
		// Dates are ISO formatted, so they compare lexically.
		if p.DateOfBirth > today {
			verr.Add(prefix+"date_of_birth", "must not be in the future")
		}
	}
	return out, verr.ErrOrNil()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	case "document":
		return "must be 6 to 9 letters or digits"
	default:
		return "is invalid"
	}
}

// assignSeats checks a seat selection against the cabin map. Selection
// errors win over an incomplete selection.
func assignSeats(seatIDs []string, passengers int) ([]domain.SeatAssignment, error) {
	verr := &domain.ValidationError{}
	seen := make(map[string]bool, len(seatIDs))
	seats := make([]domain.SeatAssignment, 0, len(seatIDs))

	for i, raw := range seatIDs {
		id := strings.ToUpper(strings.TrimSpace(raw))
		field := fmt.Sprintf("seats[%d]", i)
		switch {
		case seen[id]:
			verr.Add(field, fmt.Sprintf("seat %s selected more than once", id))
			continue
		case domain.IsSeatOccupied(id):
			verr.Add(field, fmt.Sprintf("seat %s is already taken", id))
			continue
		}
		seat, err := domain.AssignSeat(id)
		if err != nil {
			verr.Add(field, fmt.Sprintf("unknown seat %q", raw))
			continue
		}
		seen[id] = true
		seats = append(seats, seat)
	}
	if len(seatIDs) > passengers {
		verr.Add("seats", fmt.Sprintf("%d seat(s) selected for %d passenger(s)", len(seatIDs), passengers))
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	if len(seats) < passengers {
		return nil, &domain.StepBlockedError{Step: domain.StepSeats, Remaining: passengers - len(seats)}
	}
	return seats, nil
}

// mergeExtras folds duplicate ids together and drops zero quantities,
// keeping first-seen order.
func (s *FlowService) mergeExtras(extras []domain.ExtraSelection) ([]domain.ExtraSelection, error) {
	verr := &domain.ValidationError{}
	index := make(map[string]int, len(extras))
	merged := make([]domain.ExtraSelection, 0, len(extras))

	for i, e := range extras {
		id := strings.TrimSpace(e.ExtraID)
		if _, ok := s.pricer.ExtraPrice(id); !ok {
			verr.Add(fmt.Sprintf("extras[%d].extra_id", i), fmt.Sprintf("unknown extra %q", e.ExtraID))
			continue
		}
		if e.Quantity < 0 {
			verr.Add(fmt.Sprintf("extras[%d].quantity", i), "must not be negative")
			continue
		}
		if pos, ok := index[id]; ok {
			merged[pos].Quantity += e.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, domain.ExtraSelection{ExtraID: id, Quantity: e.Quantity})
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	out := merged[:0]
	for _, e := range merged {
		if e.Quantity > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}
