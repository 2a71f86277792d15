package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFlowUseCase is a mock implementation of booking.FlowUseCase
type MockFlowUseCase struct {
	mock.Mock
}

func (m *MockFlowUseCase) Start(ctx context.Context, flowID, flightID string) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) State(ctx context.Context, flowID string) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) SavePassengers(ctx context.Context, flowID string, passengers []domain.Passenger) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID, passengers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) SaveSeats(ctx context.Context, flowID string, seatIDs []string) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) SaveExtras(ctx context.Context, flowID string, extras []domain.ExtraSelection) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID, extras)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) Back(ctx context.Context, flowID string, step domain.Step) (*booking.FlowState, error) {
	args := m.Called(ctx, flowID, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.FlowState), args.Error(1)
}

func (m *MockFlowUseCase) Submit(ctx context.Context, flowID, userID string) (*domain.CheckoutSnapshot, error) {
	args := m.Called(ctx, flowID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSnapshot), args.Error(1)
}

func (m *MockFlowUseCase) Abandon(ctx context.Context, flowID string) error {
	args := m.Called(ctx, flowID)
	return args.Error(0)
}

type MockUserReader struct {
	mock.Mock
}

func (m *MockUserReader) UserID(header string) (string, error) {
	args := m.Called(header)
	return args.String(0), args.Error(1)
}

const testFlowID = "flow-1"

func newTestContext(method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(flowIDKey, testFlowID)
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFlowHandler_start(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("POST", "/booking/flow", gin.H{"flight_id": "FL-100"})

	state := &booking.FlowState{Step: domain.StepPassengers, Flow: &domain.FlowSnapshot{Step: domain.StepPassengers}, Currency: "USD"}
	mockService.On("Start", c.Request.Context(), testFlowID, "FL-100").Return(state, nil)

	handler.start(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response booking.FlowState
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, domain.StepPassengers, response.Step)
	assert.Equal(t, "USD", response.Currency)

	mockService.AssertExpectations(t)
}

func TestFlowHandler_startRequiresFlight(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("POST", "/booking/flow", gin.H{})

	handler.start(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Code)
	mockService.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowHandler_stateNotStarted(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("GET", "/booking/flow", nil)
	mockService.On("State", c.Request.Context(), testFlowID).Return(nil, domain.ErrFlowNotStarted)

	handler.state(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Code)
}

func TestFlowHandler_savePassengersValidation(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	passengers := []domain.Passenger{{FirstName: "Ada"}}
	c, w := newTestContext("PUT", "/booking/flow/passengers", gin.H{"passengers": passengers})

	verr := &domain.ValidationError{}
	verr.Add("passengers[0].last_name", "is required")
	verr.Add("passengers[0].document_number", "is required")
	mockService.On("SavePassengers", c.Request.Context(), testFlowID, passengers).Return(nil, fmt.Errorf("save passengers: %w", verr))

	handler.savePassengers(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response struct {
		Code    string              `json:"code"`
		Details []domain.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation_error", response.Code)
	assert.Len(t, response.Details, 2)
	assert.Equal(t, "passengers[0].last_name", response.Details[0].Field)
}

func TestFlowHandler_saveSeatsBlocked(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("PUT", "/booking/flow/seats", gin.H{"seat_ids": []string{"14C"}})
	mockService.On("SaveSeats", c.Request.Context(), testFlowID, []string{"14C"}).
		Return(nil, &domain.StepBlockedError{Step: domain.StepSeats, Remaining: 1})

	handler.saveSeats(c)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response struct {
		Code    string                  `json:"code"`
		Details domain.StepBlockedError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "step_blocked", response.Code)
	assert.Equal(t, 1, response.Details.Remaining)
}

func TestFlowHandler_saveExtras(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	extras := []domain.ExtraSelection{{ExtraID: "baggage", Quantity: 2}}
	c, w := newTestContext("PUT", "/booking/flow/extras", gin.H{"extras": extras})

	state := &booking.FlowState{Step: domain.StepReview, Flow: &domain.FlowSnapshot{Step: domain.StepReview, Extras: extras}}
	mockService.On("SaveExtras", c.Request.Context(), testFlowID, extras).Return(state, nil)

	handler.saveExtras(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlowHandler_back(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("POST", "/booking/flow/back", gin.H{"step": "seats"})
	mockService.On("Back", c.Request.Context(), testFlowID, domain.StepSeats).
		Return(&booking.FlowState{Step: domain.StepSeats}, nil)

	handler.back(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlowHandler_backUnknownStep(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("POST", "/booking/flow/back", gin.H{"step": "payment"})

	handler.back(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Back", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowHandler_submit(t *testing.T) {
	mockService := &MockFlowUseCase{}
	users := &MockUserReader{}
	handler := NewFlowHandler(mockService, users)

	c, w := newTestContext("POST", "/booking/flow/submit", nil)
	c.Request.Header.Set("Authorization", "Bearer token")

	snapshot := &domain.CheckoutSnapshot{
		Order:  domain.Order{OrderID: "BK-1", Status: domain.OrderStatusPending, Currency: "USD"},
		UserID: "user-7",
	}
	users.On("UserID", "Bearer token").Return("user-7", nil)
	mockService.On("Submit", c.Request.Context(), testFlowID, "user-7").Return(snapshot, nil)

	handler.submit(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response domain.CheckoutSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "BK-1", response.Order.OrderID)
	assert.Equal(t, domain.OrderStatusPending, response.Order.Status)

	users.AssertExpectations(t)
	mockService.AssertExpectations(t)
}

func TestFlowHandler_submitUnauthenticated(t *testing.T) {
	mockService := &MockFlowUseCase{}
	users := &MockUserReader{}
	handler := NewFlowHandler(mockService, users)

	c, w := newTestContext("POST", "/booking/flow/submit", nil)
	users.On("UserID", "").Return("", fmt.Errorf("missing bearer token: %w", domain.ErrUnauthenticated))

	handler.submit(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowHandler_submitInProgress(t *testing.T) {
	mockService := &MockFlowUseCase{}
	users := &MockUserReader{}
	handler := NewFlowHandler(mockService, users)

	c, w := newTestContext("POST", "/booking/flow/submit", nil)
	users.On("UserID", "").Return("user-7", nil)
	mockService.On("Submit", c.Request.Context(), testFlowID, "user-7").Return(nil, domain.ErrSubmissionInProgress)

	handler.submit(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrSubmissionInProgress.Error(), decodeError(t, w).Error)
}

func TestFlowHandler_submitUpstreamFailure(t *testing.T) {
	mockService := &MockFlowUseCase{}
	users := &MockUserReader{}
	handler := NewFlowHandler(mockService, users)

	c, w := newTestContext("POST", "/booking/flow/submit", nil)
	users.On("UserID", "").Return("user-7", nil)
	mockService.On("Submit", c.Request.Context(), testFlowID, "user-7").
		Return(nil, &domain.UpstreamError{Service: "booking", Status: http.StatusServiceUnavailable, Message: "maintenance"})

	handler.submit(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_error", decodeError(t, w).Code)
}

func TestFlowHandler_abandon(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("DELETE", "/booking/flow", nil)
	mockService.On("Abandon", c.Request.Context(), testFlowID).Return(nil)

	handler.abandon(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlowHandler_abandonFailure(t *testing.T) {
	mockService := &MockFlowUseCase{}
	handler := NewFlowHandler(mockService, &MockUserReader{})

	c, w := newTestContext("DELETE", "/booking/flow", nil)
	mockService.On("Abandon", c.Request.Context(), testFlowID).Return(errors.New("redis down"))

	handler.abandon(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w).Error)
}
