package slots

import (
	"context"
	"time"

	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/repository"
)

type SlotUseCase interface {
	ListOpen(ctx context.Context) ([]domain.Slot, error)
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
}

type SlotCache interface {
	GetOpenSlots(ctx context.Context) ([]domain.Slot, error)
	SetOpenSlots(ctx context.Context, slots []domain.Slot) error
}

type SlotService struct {
	repo  repository.SlotRepository
	cache SlotCache
}

func NewSlotService(repo repository.SlotRepository, cache SlotCache) *SlotService {
	return &SlotService{repo: repo, cache: cache}
}

func (s *SlotService) ListOpen(ctx context.Context) ([]domain.Slot, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetOpenSlots(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	slots, err := s.repo.ListOpen(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetOpenSlots(ctx, slots)
	}
	return slots, nil
}

func (s *SlotService) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	return s.repo.GetByID(ctx, id)
}

var _ SlotUseCase = (*SlotService)(nil)
