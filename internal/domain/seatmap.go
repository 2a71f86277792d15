package domain

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

const SeatRows = 20

var SeatLetters = []string{"A", "B", "C", "D", "E", "F"}

var (
	PremiumSeatPrice      = decimal.NewFromInt(50)
	ExtraLegroomSeatPrice = decimal.NewFromInt(25)
)

var (
	premiumRows      = map[int]bool{1: true, 2: true}
	extraLegroomRows = map[int]bool{10: true, 11: true, 12: true}
	occupiedSeats    = map[string]bool{
		"1A": true, "1B": true, "2C": true, "3D": true, "4E": true,
		"5A": true, "6B": true, "7C": true, "10D": true, "12A": true,
	}
	seatIDPattern = regexp.MustCompile(`^([1-9][0-9]?)([A-F])$`)
)

// SeatInfo describes one seat of the cabin map.
type SeatInfo struct {
	SeatID   string          `json:"seat_id"`
	Row      int             `json:"row"`
	Letter   string          `json:"letter"`
	Tier     SeatTier        `json:"tier"`
	Price    decimal.Decimal `json:"price"`
	Occupied bool            `json:"occupied"`
}

// TierForRow is the pricing rule: premium and exit rows carry a fixed
// surcharge, every other row is free.
func TierForRow(row int) (SeatTier, decimal.Decimal) {
	switch {
	case premiumRows[row]:
		return SeatTierPremium, PremiumSeatPrice
	case extraLegroomRows[row]:
		return SeatTierExtraLegroom, ExtraLegroomSeatPrice
	default:
		return SeatTierStandard, decimal.Zero
	}
}

func ParseSeatID(id string) (int, string, error) {
	m := seatIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, "", fmt.Errorf("invalid seat %q", id)
	}
	row, _ := strconv.Atoi(m[1])
	if row > SeatRows {
		return 0, "", fmt.Errorf("invalid seat %q", id)
	}
	return row, m[2], nil
}

func IsSeatOccupied(id string) bool {
	return occupiedSeats[id]
}

// AssignSeat derives the assignment for a seat id from its row.
func AssignSeat(id string) (SeatAssignment, error) {
	row, _, err := ParseSeatID(id)
	if err != nil {
		return SeatAssignment{}, err
	}
	tier, price := TierForRow(row)
	return SeatAssignment{SeatID: id, Tier: tier, Price: price}, nil
}

// SeatMap lists every seat row by row.
func SeatMap() []SeatInfo {
	seats := make([]SeatInfo, 0, SeatRows*len(SeatLetters))
	for row := 1; row <= SeatRows; row++ {
		tier, price := TierForRow(row)
		for _, letter := range SeatLetters {
			id := strconv.Itoa(row) + letter
			seats = append(seats, SeatInfo{
				SeatID:   id,
				Row:      row,
				Letter:   letter,
				Tier:     tier,
				Price:    price,
				Occupied: occupiedSeats[id],
			})
		}
	}
	return seats
}
