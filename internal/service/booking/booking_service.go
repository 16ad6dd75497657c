package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/kafka"
	"github.com/mlevkov/expertbooking/internal/repository"
	"github.com/mlevkov/expertbooking/internal/service/payment"
)

type ResolveAction string

const (
	ActionConfirm ResolveAction = "confirm"
	ActionDecline ResolveAction = "decline"
)

type BookingUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Booking, error)
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	// Resolve is the expert's confirm/decline decision on a booking that is
	// awaiting approval.
	Resolve(ctx context.Context, input ResolveInput) (*domain.Booking, error)
	// Cancel is the learner-initiated cancellation. Returns the refunded
	// amount in cents. A processor failure while settling the money is
	// returned as an error even though the cancellation itself committed;
	// the sweep retries the settlement.
	Cancel(ctx context.Context, token string, learnerID int64, reason string) (*domain.Booking, int64, error)
	// SweepExpired cancels bookings whose hold lease has lapsed without a
	// decision and releases their holds. Safe to run repeatedly and
	// concurrently.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type Cache interface {
	AcquireSlotLock(ctx context.Context, slotID int64, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, slotID int64) error
	InvalidateOpenSlots(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	payments           payment.PaymentUseCase
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	holdTTL            time.Duration
	leadTime           time.Duration
}

type ReserveInput struct {
	LearnerID int64  `json:"learner_id"`
	SlotID    int64  `json:"slot_id"`
	SessionID int64  `json:"session_id"`
	Notes     string `json:"notes"`
}

type ResolveInput struct {
	Token    string
	ExpertID int64
	Action   ResolveAction
	Notes    string
	Reason   string
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithLeadTime(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.leadTime = d
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	payments payment.PaymentUseCase,
	cache Cache,
	producer Producer,
	bookingTopic string,
	holdTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		payments:     payments,
		cache:        cache,
		producer:     producer,
		bookingTopic: bookingTopic,
		holdTTL:      holdTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (*domain.Booking, error) {
	if input.LearnerID <= 0 {
		return nil, fmt.Errorf("learner id is required: %w", domain.ErrValidation)
	}
	if input.SlotID <= 0 {
		return nil, fmt.Errorf("slot id is required: %w", domain.ErrValidation)
	}

	locked := false
	if s.cache != nil {
		ok, err := s.cache.AcquireSlotLock(ctx, input.SlotID, s.holdTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrSlotUnavailable
		}
		locked = true
	}

	booking := &domain.Booking{
		Token:     uuid.NewString(),
		LearnerID: input.LearnerID,
		SlotID:    input.SlotID,
		SessionID: input.SessionID,
		Notes:     input.Notes,
		HeldUntil: time.Now().Add(s.holdTTL),
	}

	if err := s.bookings.ClaimSlot(ctx, booking, time.Now().Add(s.leadTime)); err != nil {
		if locked {
			_ = s.cache.ReleaseSlotLock(ctx, input.SlotID)
		}
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateOpenSlots(ctx)
	}
	s.publish(ctx, "booking_created", booking, "")
	return booking, nil
}

func (s *BookingService) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	return s.bookings.GetByToken(ctx, token)
}

func (s *BookingService) Resolve(ctx context.Context, input ResolveInput) (*domain.Booking, error) {
	if input.Action != ActionConfirm && input.Action != ActionDecline {
		return nil, fmt.Errorf("unknown action %q: %w", input.Action, domain.ErrValidation)
	}

	current, err := s.bookings.GetByToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	if current.ExpertID != input.ExpertID {
		return nil, domain.ErrForbidden
	}
	if current.Status.Terminal() || current.Status == domain.BookingStatusConfirmed {
		return nil, domain.ErrAlreadyResolved
	}
	if current.Status != domain.BookingStatusPendingApproval {
		return nil, domain.ErrInvalidState
	}

	if input.Action == ActionConfirm {
		updated, err := s.payments.Capture(ctx, input.Token)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, "booking_confirmed", updated, "")
		return updated, nil
	}

	// Decline: the conditional transition is the arbiter against a racing
	// sweep or learner cancel; money settlement follows.
	updated, err := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
		Token:       input.Token,
		From:        []domain.BookingStatus{domain.BookingStatusPendingApproval},
		To:          domain.BookingStatusDeclined,
		Reason:      input.Reason,
		ReleaseSeat: true,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.payments.ReleaseFunds(ctx, updated); err != nil {
		log.Printf("release funds after decline of booking %s: %v", input.Token, err)
	}

	s.releaseSlot(ctx, updated.SlotID)
	s.publish(ctx, "booking_declined", updated, input.Reason)
	return s.bookings.GetByToken(ctx, input.Token)
}

func (s *BookingService) Cancel(ctx context.Context, token string, learnerID int64, reason string) (*domain.Booking, int64, error) {
	current, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	if current.LearnerID != learnerID {
		return nil, 0, domain.ErrForbidden
	}
	if current.Status.Terminal() {
		return nil, 0, domain.ErrAlreadyResolved
	}

	updated, err := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
		Token: token,
		From: []domain.BookingStatus{
			domain.BookingStatusPending,
			domain.BookingStatusPendingApproval,
			domain.BookingStatusConfirmed,
		},
		To:          domain.BookingStatusCancelled,
		Reason:      reason,
		ReleaseSeat: true,
	})
	if err != nil {
		return nil, 0, err
	}

	refunded, err := s.payments.ReleaseFunds(ctx, updated)
	s.releaseSlot(ctx, updated.SlotID)
	if err != nil {
		// The cancellation committed but the money did not settle. The
		// caller must not see a zero refund as success; the sweep picks
		// the booking up again through UnsettledTerminal.
		return nil, 0, err
	}

	s.publish(ctx, "booking_cancelled", updated, reason)

	final, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return updated, refunded, nil
	}
	return final, refunded, nil
}

func (s *BookingService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.bookings.ExpiredCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range candidates {
		// Re-checked under the conditional update: a decision that landed
		// between the select and here wins, and this iteration is a no-op.
		updated, err := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
			Token: b.Token,
			From: []domain.BookingStatus{
				domain.BookingStatusPending,
				domain.BookingStatusPendingApproval,
			},
			To:          domain.BookingStatusCancelled,
			Reason:      "hold expired",
			ReleaseSeat: true,
			HeldBefore:  &now,
		})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				continue
			}
			return cancelled, err
		}

		if _, err := s.payments.ReleaseFunds(ctx, updated); err != nil {
			log.Printf("release funds for expired booking %s: %v", b.Token, err)
		}

		s.releaseSlot(ctx, updated.SlotID)
		s.publish(ctx, "booking_expired", updated, "hold expired")
		cancelled++
	}

	// Repair terminal bookings whose release or refund failed earlier, so a
	// processor outage can never strand a learner's hold or charge.
	// ReleaseFunds is idempotent, so retrying here is safe even if a racing
	// call settles first.
	unsettled, err := s.bookings.UnsettledTerminal(ctx)
	if err != nil {
		log.Printf("list unsettled terminal bookings: %v", err)
	} else {
		for _, b := range unsettled {
			if _, err := s.payments.ReleaseFunds(ctx, &b); err != nil {
				log.Printf("retry settlement for booking %s: %v", b.Token, err)
			}
		}
	}

	if n, err := s.bookings.CompleteFinished(ctx, now); err != nil {
		log.Printf("complete finished bookings: %v", err)
	} else if n > 0 {
		log.Printf("completed %d finished bookings", n)
	}

	return cancelled, nil
}

func (s *BookingService) releaseSlot(ctx context.Context, slotID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.ReleaseSlotLock(ctx, slotID)
	_ = s.cache.InvalidateOpenSlots(ctx)
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, reason string) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		Token:         booking.Token,
		SlotID:        booking.SlotID,
		ExpertID:      booking.ExpertID,
		LearnerID:     booking.LearnerID,
		Status:        string(booking.Status),
		PaymentStatus: string(booking.PaymentStatus),
		AmountCents:   booking.AmountCents,
		Currency:      booking.Currency,
		HeldUntil:     booking.HeldUntil,
		Reason:        reason,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Token, event); err != nil {
		log.Printf("publish %s event for booking %s: %v", eventType, booking.Token, err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Token, event); err != nil {
			log.Printf("publish %s notification for booking %s: %v", eventType, booking.Token, err)
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
