package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/go-playground/validator/v10"
)

const DefaultCountry = "United States"

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// PaymentDetails is the card and billing form of the checkout page.
type PaymentDetails struct {
	CardNumber     string `json:"card_number" validate:"required,len=16,digits"`
	Expiry         string `json:"expiry" validate:"required,expiry"`
	CVV            string `json:"cvv" validate:"required,min=3,max=4,digits"`
	CardholderName string `json:"cardholder_name" validate:"required"`
	Street         string `json:"street" validate:"required"`
	City           string `json:"city" validate:"required"`
	PostalCode     string `json:"postal_code" validate:"required"`
	Country        string `json:"country"`
}

// ExpiryParts splits a validated MM/YY expiry into month and four digit year.
func (d PaymentDetails) ExpiryParts() (month, year string) {
	month, yy, _ := strings.Cut(d.Expiry, "/")
	return month, "20" + yy
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	return v
}

func normalizePayment(d PaymentDetails) PaymentDetails {
	d.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(d.CardNumber))
	d.Expiry = strings.TrimSpace(d.Expiry)
	d.CVV = strings.TrimSpace(d.CVV)
	d.CardholderName = strings.TrimSpace(d.CardholderName)
	d.Street = strings.TrimSpace(d.Street)
	d.City = strings.TrimSpace(d.City)
	d.PostalCode = strings.TrimSpace(d.PostalCode)
	d.Country = strings.TrimSpace(d.Country)
	if d.Country == "" {
		d.Country = DefaultCountry
	}
	return d
}

func validatePayment(v *validator.Validate, d PaymentDetails) (PaymentDetails, error) {
	d = normalizePayment(d)
	err := v.Struct(d)
	if err == nil {
		return d, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return d, err
	}
	verr := &domain.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), paymentMessage(fe))
	}
	return d, verr
}

func paymentMessage(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return "is required"
	}
	switch fe.Field() {
	case "card_number":
		return "must be a 16-digit card number"
	case "expiry":
		return "must be a valid expiry date (MM/YY)"
	case "cvv":
		return "must be 3 or 4 digits"
	default:
		return "is invalid"
	}
}
