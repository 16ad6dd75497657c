package webhook

import (
	"context"
	"errors"
	"log"

	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/repository"
)

type Result string

const (
	ResultAccepted  Result = "accepted"
	ResultDuplicate Result = "duplicate"
)

type WebhookUseCase interface {
	// Ingest applies one processor event at most once. Duplicate event ids
	// and events that find the booking outside the expected prior state are
	// acknowledged without touching it, so at-least-once any-order delivery
	// can never corrupt booking state.
	Ingest(ctx context.Context, eventID, eventType, bookingToken string) (Result, error)
}

// Cache is the reservation fast-path state that must be cleared when an
// event gives a slot its capacity back.
type Cache interface {
	ReleaseSlotLock(ctx context.Context, slotID int64) error
	InvalidateOpenSlots(ctx context.Context) error
}

type WebhookService struct {
	events   repository.WebhookEventRepository
	bookings repository.BookingRepository
	cache    Cache
	notify   func(ctx context.Context, eventType string, booking *domain.Booking)
}

type WebhookServiceOption func(*WebhookService)

// WithNotifier forwards applied transitions to the event pipeline.
func WithNotifier(fn func(ctx context.Context, eventType string, booking *domain.Booking)) WebhookServiceOption {
	return func(s *WebhookService) {
		s.notify = fn
	}
}

func WithCache(c Cache) WebhookServiceOption {
	return func(s *WebhookService) {
		s.cache = c
	}
}

func NewWebhookService(events repository.WebhookEventRepository, bookings repository.BookingRepository, opts ...WebhookServiceOption) *WebhookService {
	service := &WebhookService{events: events, bookings: bookings}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *WebhookService) Ingest(ctx context.Context, eventID, eventType, bookingToken string) (Result, error) {
	inserted, err := s.events.InsertOnce(ctx, &domain.WebhookEvent{
		EventID:      eventID,
		EventType:    eventType,
		BookingToken: bookingToken,
	})
	if err != nil {
		return "", err
	}
	if !inserted {
		log.Printf("webhook event %s already processed, skipping", eventID)
		return ResultDuplicate, nil
	}

	outcome := s.dispatch(ctx, eventID, eventType, bookingToken)
	if err := s.events.RecordOutcome(ctx, eventID, outcome); err != nil {
		log.Printf("record outcome for webhook event %s: %v", eventID, err)
	}
	return ResultAccepted, nil
}

// dispatch never returns an error: a failed or inapplicable event is logged
// and acknowledged so the processor stops redelivering it.
func (s *WebhookService) dispatch(ctx context.Context, eventID, eventType, bookingToken string) string {
	switch eventType {
	case domain.EventHoldSucceeded:
		updated, err := s.bookings.MarkAwaitingApproval(ctx, bookingToken)
		if err != nil {
			return s.discard(eventID, eventType, bookingToken, err)
		}
		s.emit(ctx, "booking_authorized", updated)
		return "applied"

	case domain.EventHoldFailed:
		updated, err := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
			Token:         bookingToken,
			From:          []domain.BookingStatus{domain.BookingStatusPending},
			To:            domain.BookingStatusCancelled,
			PaymentStatus: domain.PaymentStatusFailed,
			Reason:        "payment hold failed",
			ReleaseSeat:   true,
		})
		if err != nil {
			return s.discard(eventID, eventType, bookingToken, err)
		}
		s.freeSlot(ctx, updated.SlotID)
		s.emit(ctx, "booking_cancelled", updated)
		return "applied"

	default:
		log.Printf("webhook event %s has unhandled type %s, ignoring", eventID, eventType)
		return "ignored"
	}
}

func (s *WebhookService) discard(eventID, eventType, bookingToken string, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Printf("webhook event %s references unknown booking %s, discarding", eventID, bookingToken)
		return "discarded: booking not found"
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAlreadyResolved):
		// Out-of-order or replayed delivery; the booking has moved on.
		log.Printf("webhook event %s (%s) does not match booking %s state, discarding", eventID, eventType, bookingToken)
		return "discarded: unexpected booking state"
	default:
		log.Printf("webhook event %s failed: %v", eventID, err)
		return "error: " + err.Error()
	}
}

// freeSlot clears the redis slot lock and the open-slots cache after the
// database gave the capacity back, so the slot is reservable again
// immediately instead of after the lock TTL.
func (s *WebhookService) freeSlot(ctx context.Context, slotID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ReleaseSlotLock(ctx, slotID); err != nil {
		log.Printf("release slot lock for slot %d: %v", slotID, err)
	}
	if err := s.cache.InvalidateOpenSlots(ctx); err != nil {
		log.Printf("invalidate open slots cache: %v", err)
	}
}

func (s *WebhookService) emit(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.notify == nil {
		return
	}
	s.notify(ctx, eventType, booking)
}

var _ WebhookUseCase = (*WebhookService)(nil)
