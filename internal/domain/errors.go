package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnknownService       = errors.New("unknown service")
	ErrFlowNotStarted       = errors.New("booking flow not started")
	ErrStepOutOfOrder       = errors.New("booking step not reached yet")
	ErrFlowSubmitted        = errors.New("booking flow already submitted")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrNoBooking            = errors.New("no booking found")
	ErrOrderNotPayable      = errors.New("order cannot be paid")
	ErrUnauthenticated      = errors.New("user not authenticated")
)

// FieldError is a single field-scoped validation failure,
// e.g. Field "passengers[1].document_number".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field error of one submission.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(e.Fields))
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ErrOrNil returns nil when no field error was collected.
func (e *ValidationError) ErrOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StepBlockedError means a transition guard did not pass.
type StepBlockedError struct {
	Step      Step `json:"step"`
	Remaining int  `json:"remaining"`
}

func (e *StepBlockedError) Error() string {
	return fmt.Sprintf("cannot leave %s step: %d selection(s) remaining", e.Step, e.Remaining)
}

// UpstreamError is a non-2xx answer from a backend service, or a failure to
// reach it at all (Err set, Status 502).
type UpstreamError struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s service: %s (status %d)", e.Service, msg, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUpstreamNotFound reports a 404 from a backend service.
func IsUpstreamNotFound(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u) && u.Status == http.StatusNotFound
}
