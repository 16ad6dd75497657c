package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/service/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Reserve(ctx context.Context, input booking.ReserveInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Resolve(ctx context.Context, input booking.ResolveInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Cancel(ctx context.Context, token string, learnerID int64, reason string) (*domain.Booking, int64, error) {
	args := m.Called(ctx, token, learnerID, reason)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Get(1).(int64), args.Error(2)
}

func (m *MockBookingUseCase) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type bookingEnvelope struct {
	Booking           bookingResponse `json:"booking"`
	RefundAmountCents int64           `json:"refund_amount_cents"`
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:            1,
		Token:         "token123",
		LearnerID:     7,
		ExpertID:      3,
		SlotID:        42,
		StartsAt:      time.Now().Add(2 * time.Hour),
		EndsAt:        time.Now().Add(3 * time.Hour),
		AmountCents:   5000,
		Currency:      "usd",
		Status:        status,
		PaymentStatus: domain.PaymentStatusPending,
		HeldUntil:     time.Now().Add(15 * time.Minute),
	}
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	input := booking.ReserveInput{LearnerID: 7, SlotID: 42}
	body, _ := json.Marshal(input)
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Reserve", c.Request.Context(), input).Return(sampleBooking(domain.BookingStatusPending), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "token123", response.Booking.Token)
	assert.Equal(t, string(domain.BookingStatusPending), response.Booking.Status)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_slotUnavailable(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(booking.ReserveInput{LearnerID: 7, SlotID: 42})
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Reserve", c.Request.Context(), mock.Anything).Return(nil, domain.ErrSlotUnavailable)

	handler.create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "slot unavailable")
}

func TestBookingHandler_get_notFound(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "missing"}}
	c.Request = httptest.NewRequest("GET", "/bookings/missing", nil)

	mockService.On("GetByToken", c.Request.Context(), "missing").Return(nil, domain.ErrNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandler_resolve_confirm(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	token := "token123"
	c.Params = gin.Params{{Key: "token", Value: token}}
	body, _ := json.Marshal(map[string]string{"action": "confirm"})
	c.Request = httptest.NewRequest("POST", "/bookings/"+token+"/resolve", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("X-Expert-ID", "3")

	confirmed := sampleBooking(domain.BookingStatusConfirmed)
	confirmed.PaymentStatus = domain.PaymentStatusCaptured

	mockService.On("Resolve", c.Request.Context(), booking.ResolveInput{
		Token:    token,
		ExpertID: 3,
		Action:   booking.ActionConfirm,
	}).Return(confirmed, nil)

	handler.resolve(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, string(domain.BookingStatusConfirmed), response.Booking.Status)
	assert.Equal(t, string(domain.PaymentStatusCaptured), response.Booking.PaymentStatus)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_resolve_missingExpertHeader(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "token123"}}
	body, _ := json.Marshal(map[string]string{"action": "confirm"})
	c.Request = httptest.NewRequest("POST", "/bookings/token123/resolve", bytes.NewReader(body))

	handler.resolve(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestBookingHandler_resolve_alreadyResolved(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "token123"}}
	body, _ := json.Marshal(map[string]string{"action": "decline"})
	c.Request = httptest.NewRequest("POST", "/bookings/token123/resolve", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("X-Expert-ID", "3")

	mockService.On("Resolve", c.Request.Context(), mock.Anything).Return(nil, domain.ErrAlreadyResolved)

	handler.resolve(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already resolved")
}

func TestBookingHandler_cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	token := "token123"
	c.Params = gin.Params{{Key: "token", Value: token}}
	c.Request = httptest.NewRequest("DELETE", "/bookings/"+token, nil)
	c.Request.Header.Set("X-Learner-ID", "7")

	cancelled := sampleBooking(domain.BookingStatusCancelled)
	cancelled.PaymentStatus = domain.PaymentStatusRefunded

	mockService.On("Cancel", c.Request.Context(), token, int64(7), "").Return(cancelled, int64(5000), nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, string(domain.BookingStatusCancelled), response.Booking.Status)
	assert.Equal(t, int64(5000), response.RefundAmountCents)

	mockService.AssertExpectations(t)
}
