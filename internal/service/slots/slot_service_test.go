package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSlotRepository struct {
	mock.Mock
}

func (m *MockSlotRepository) ListOpen(ctx context.Context, after time.Time) ([]domain.Slot, error) {
	args := m.Called(ctx, after)
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockSlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Slot), args.Error(1)
}

type MockSlotCache struct {
	mock.Mock
}

func (m *MockSlotCache) GetOpenSlots(ctx context.Context) ([]domain.Slot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockSlotCache) SetOpenSlots(ctx context.Context, slots []domain.Slot) error {
	args := m.Called(ctx, slots)
	return args.Error(0)
}

func openSlots() []domain.Slot {
	return []domain.Slot{
		{
			ID:         4,
			ExpertID:   3,
			StartsAt:   time.Now().Add(2 * time.Hour),
			EndsAt:     time.Now().Add(3 * time.Hour),
			Capacity:   1,
			Remaining:  1,
			Available:  true,
			PriceCents: 5000,
			Currency:   "usd",
		},
	}
}

func TestSlotService_ListOpen_CacheMiss(t *testing.T) {
	mockRepo := &MockSlotRepository{}
	mockCache := &MockSlotCache{}

	service := NewSlotService(mockRepo, mockCache)
	ctx := context.Background()
	slots := openSlots()

	mockCache.On("GetOpenSlots", ctx).Return(([]domain.Slot)(nil), nil).Once()
	mockRepo.On("ListOpen", ctx, mock.Anything).Return(slots, nil).Once()
	mockCache.On("SetOpenSlots", ctx, slots).Return(nil).Once()

	result, err := service.ListOpen(ctx)

	assert.NoError(t, err)
	assert.Equal(t, slots, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestSlotService_ListOpen_CacheHit(t *testing.T) {
	mockRepo := &MockSlotRepository{}
	mockCache := &MockSlotCache{}

	service := NewSlotService(mockRepo, mockCache)
	ctx := context.Background()
	slots := openSlots()

	mockCache.On("GetOpenSlots", ctx).Return(slots, nil).Once()

	result, err := service.ListOpen(ctx)

	assert.NoError(t, err)
	assert.Equal(t, slots, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "ListOpen")
	mockCache.AssertNotCalled(t, "SetOpenSlots")
}

func TestSlotService_ListOpen_CacheErrorFallsThrough(t *testing.T) {
	mockRepo := &MockSlotRepository{}
	mockCache := &MockSlotCache{}

	service := NewSlotService(mockRepo, mockCache)
	ctx := context.Background()
	slots := openSlots()

	mockCache.On("GetOpenSlots", ctx).Return(([]domain.Slot)(nil), errors.New("cache error")).Once()
	mockRepo.On("ListOpen", ctx, mock.Anything).Return(slots, nil).Once()
	mockCache.On("SetOpenSlots", ctx, slots).Return(nil).Once()

	result, err := service.ListOpen(ctx)

	assert.NoError(t, err)
	assert.Equal(t, slots, result)

	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestSlotService_ListOpen_RepositoryError(t *testing.T) {
	mockRepo := &MockSlotRepository{}
	mockCache := &MockSlotCache{}

	service := NewSlotService(mockRepo, mockCache)
	ctx := context.Background()

	expectedErr := errors.New("database error")
	mockCache.On("GetOpenSlots", ctx).Return(([]domain.Slot)(nil), nil).Once()
	mockRepo.On("ListOpen", ctx, mock.Anything).Return(([]domain.Slot)(nil), expectedErr).Once()

	result, err := service.ListOpen(ctx)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, expectedErr, err)

	mockCache.AssertNotCalled(t, "SetOpenSlots")
}

func TestSlotService_GetByID(t *testing.T) {
	mockRepo := &MockSlotRepository{}

	service := NewSlotService(mockRepo, nil)
	ctx := context.Background()

	slot := &openSlots()[0]
	mockRepo.On("GetByID", ctx, int64(4)).Return(slot, nil).Once()

	result, err := service.GetByID(ctx, 4)

	assert.NoError(t, err)
	assert.Equal(t, slot, result)
	mockRepo.AssertExpectations(t)
}

func TestSlotService_NoCache(t *testing.T) {
	mockRepo := &MockSlotRepository{}

	service := NewSlotService(mockRepo, nil)
	ctx := context.Background()
	slots := openSlots()

	mockRepo.On("ListOpen", ctx, mock.Anything).Return(slots, nil).Once()

	result, err := service.ListOpen(ctx)

	assert.NoError(t, err)
	assert.Equal(t, slots, result)
	mockRepo.AssertExpectations(t)
}
