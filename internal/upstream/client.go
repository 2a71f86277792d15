// Package upstream is the typed client the booking and checkout services use
// to reach the search, booking and payment backends through the router.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/proxy"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	SearchService  = "search"
	BookingService = "booking"
	PaymentService = "payment"

	IdempotencyHeader = "Idempotency-Key"
)

// Doer is satisfied by *proxy.Router.
type Doer interface {
	Do(ctx context.Context, req proxy.Request) (*proxy.Response, error)
}

type BookingPassenger struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	PassportNumber string `json:"passport_number"`
}

type BookingRequest struct {
	FlightID   string             `json:"flight_id"`
	UserID     string             `json:"user_id"`
	Passengers []BookingPassenger `json:"passengers"`
	ClassType  string             `json:"class_type"`
	AddOns     []string           `json:"add_ons"`
}

// BookingRecord accepts both the booking service's current field names and
// the older booking_id/resource_id pair.
type BookingRecord struct {
	ID         string             `json:"id"`
	BookingID  string             `json:"booking_id,omitempty"`
	FlightID   string             `json:"flight_id"`
	ResourceID string             `json:"resource_id,omitempty"`
	UserID     string             `json:"user_id,omitempty"`
	Status     string             `json:"status"`
	Passengers []BookingPassenger `json:"passengers"`
	AddOns     []string           `json:"add_ons,omitempty"`
}

func (b BookingRecord) Ref() string {
	if b.ID != "" {
		return b.ID
	}
	return b.BookingID
}

func (b BookingRecord) Flight() string {
	if b.FlightID != "" {
		return b.FlightID
	}
	return b.ResourceID
}

type PaymentMethod struct {
	Type           string `json:"type"`
	CardNumber     string `json:"card_number"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholder_name"`
}

type BillingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type PaymentRequest struct {
	BookingID      string         `json:"booking_id"`
	Amount         json.Number    `json:"amount"`
	Currency       string         `json:"currency"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	BillingAddress BillingAddress `json:"billing_address"`
}

// Amount renders a money value as a JSON number with cents.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type PaymentResult struct {
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type Client struct {
	doer   Doer
	logger logrus.FieldLogger
}

func New(doer Doer, logger logrus.FieldLogger) *Client {
	return &Client{doer: doer, logger: logger}
}

func (c *Client) GetFlight(ctx context.Context, flightID string) (domain.SelectedItem, error) {
	var item domain.SelectedItem
	if err := c.call(ctx, SearchService, http.MethodGet, "flights/"+url.PathEscape(flightID), nil, nil, &item); err != nil {
		return domain.SelectedItem{}, err
	}
	if item.ID == "" {
		item.ID = flightID
	}
	return item, nil
}

func (c *Client) CreateBooking(ctx context.Context, idempotencyKey string, req BookingRequest) (BookingRecord, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(IdempotencyHeader, idempotencyKey)
	}

	var rec BookingRecord
	if err := c.call(ctx, BookingService, http.MethodPost, "bookings", header, req, &rec); err != nil {
		return BookingRecord{}, err
	}
	if rec.Ref() == "" {
		return BookingRecord{}, &domain.UpstreamError{Service: BookingService, Status: http.StatusBadGateway, Message: "booking created without an id"}
	}
	return rec, nil
}

func (c *Client) GetBooking(ctx context.Context, bookingID string) (BookingRecord, error) {
	var rec BookingRecord
	if err := c.call(ctx, BookingService, http.MethodGet, "bookings/"+url.PathEscape(bookingID), nil, nil, &rec); err != nil {
		return BookingRecord{}, err
	}
	return rec, nil
}

// ProcessPayment charges once. A 2xx answer carrying a FAILED status is a
// declined payment.
func (c *Client) ProcessPayment(ctx context.Context, idempotencyKey string, req PaymentRequest) (PaymentResult, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(IdempotencyHeader, idempotencyKey)
	}

	var res PaymentResult
	if err := c.call(ctx, PaymentService, http.MethodPost, "payments", header, req, &res); err != nil {
		return PaymentResult{}, err
	}
	if strings.EqualFold(res.Status, "failed") {
		return res, &domain.UpstreamError{Service: PaymentService, Status: http.StatusPaymentRequired, Message: "payment declined"}
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, service, method, path string, header http.Header, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s request: %w", service, err)
		}
		if header == nil {
			header = http.Header{}
		}
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(ctx, proxy.Request{
		Service: service,
		Path:    path,
		Method:  method,
		Header:  header,
		Body:    body,
	})
	if errors.Is(err, domain.ErrUnknownService) {
		return err
	}
	if err != nil {
		c.logger.WithError(err).WithField("service", service).Warn("upstream unreachable")
		return &domain.UpstreamError{Service: service, Status: http.StatusBadGateway, Message: "service unavailable", Err: err}
	}

	if resp.Status < 200 || resp.Status >= 300 {
		c.logger.WithFields(logrus.Fields{
			"service": service,
			"method":  method,
			"path":    path,
			"status":  resp.Status,
		}).Warn("upstream call failed")
		return &domain.UpstreamError{Service: service, Status: resp.Status, Message: errorMessage(resp.Body)}
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", service, err)
		}
	}
	return nil
}

// errorMessage picks the human readable part of an error body: detail first,
// then message, then error.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		return detail
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
