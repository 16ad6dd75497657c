package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/processor"
	"github.com/mlevkov/expertbooking/internal/repository"
)

type PaymentUseCase interface {
	// Authorize places a deferred-capture hold for the booking amount. Valid
	// only while payment_status is pending and no hold reference is stored.
	Authorize(ctx context.Context, token string, amountCents int64, currency string) (*processor.Hold, error)
	// Capture settles the authorized amount and confirms the booking. A
	// repeat call on an already captured booking is a no-op success.
	Capture(ctx context.Context, token string) (*domain.Booking, error)
	// ReleaseFunds settles the money side after a terminal transition:
	// releases an uncaptured hold or refunds a captured charge. Returns the
	// refunded amount in cents (zero when nothing had been captured).
	ReleaseFunds(ctx context.Context, booking *domain.Booking) (int64, error)
}

// ProcessorClient is the slice of the payment processor API the
// orchestrator needs.
type ProcessorClient interface {
	CreateHold(ctx context.Context, amountCents int64, currency, bookingToken, idemKey string) (*processor.Hold, error)
	Capture(ctx context.Context, holdRef string, amountCents int64, idemKey string) (*processor.Receipt, error)
	Release(ctx context.Context, holdRef, idemKey string) error
	Refund(ctx context.Context, holdRef string, amountCents int64, idemKey string) (*processor.Receipt, error)
}

type PaymentService struct {
	bookings repository.BookingRepository
	proc     ProcessorClient
}

func NewPaymentService(bookings repository.BookingRepository, proc ProcessorClient) *PaymentService {
	return &PaymentService{bookings: bookings, proc: proc}
}

func (s *PaymentService) Authorize(ctx context.Context, token string, amountCents int64, currency string) (*processor.Hold, error) {
	b, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != domain.PaymentStatusPending || b.HoldRef != "" {
		return nil, domain.ErrInvalidState
	}
	if amountCents != b.AmountCents || currency != b.Currency {
		return nil, fmt.Errorf("amount %d %s does not match booking price: %w",
			amountCents, currency, domain.ErrValidation)
	}

	// The idempotency key pins concurrent or retried authorize calls to a
	// single processor-side hold.
	hold, err := s.proc.CreateHold(ctx, amountCents, currency, token, token+":auth")
	if err != nil {
		log.Printf("authorize failed for booking %s: %v", token, err)
		if _, ferr := s.bookings.SetPaymentStatus(ctx, token, domain.PaymentStatusPending, domain.PaymentStatusFailed); ferr != nil {
			log.Printf("mark payment failed for booking %s: %v", token, ferr)
		}
		return nil, domain.ErrProcessor
	}

	if _, err := s.bookings.SetAuthorized(ctx, token, hold.ID); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *PaymentService) Capture(ctx context.Context, token string) (*domain.Booking, error) {
	b, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	// A retry on an already settled booking is a no-op success, including
	// after the sweep advanced a confirmed booking to completed.
	if b.PaymentStatus == domain.PaymentStatusCaptured &&
		(b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusCompleted) {
		return b, nil
	}
	if b.Status != domain.BookingStatusPendingApproval {
		if b.Status.Terminal() {
			return nil, domain.ErrAlreadyResolved
		}
		return nil, domain.ErrInvalidState
	}
	if b.PaymentStatus != domain.PaymentStatusAuthorized {
		return nil, domain.ErrInvalidState
	}

	// Claim the transition before touching money. Whoever commits this
	// conditional update first owns the outcome; a racing sweep or decline
	// observes ErrAlreadyResolved instead.
	claimed, err := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
		Token: token,
		From:  []domain.BookingStatus{domain.BookingStatusPendingApproval},
		To:    domain.BookingStatusConfirmed,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.proc.Capture(ctx, claimed.HoldRef, claimed.AmountCents, token+":capture"); err != nil {
		log.Printf("capture failed for booking %s: %v", token, err)
		// The hold could not be settled (typically an expired
		// authorization). Cancel the booking and give the seat back.
		if _, cerr := s.bookings.ResolveTerminal(ctx, repository.TerminalTransition{
			Token:         token,
			From:          []domain.BookingStatus{domain.BookingStatusConfirmed},
			To:            domain.BookingStatusCancelled,
			PaymentStatus: domain.PaymentStatusFailed,
			Reason:        "capture failed",
			ReleaseSeat:   true,
		}); cerr != nil {
			log.Printf("cancel after failed capture for booking %s: %v", token, cerr)
		}
		return nil, domain.ErrProcessor
	}

	updated, err := s.bookings.SetPaymentStatus(ctx, token, domain.PaymentStatusAuthorized, domain.PaymentStatusCaptured)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PaymentService) ReleaseFunds(ctx context.Context, booking *domain.Booking) (int64, error) {
	token := booking.Token

	switch booking.PaymentStatus {
	case domain.PaymentStatusCancelled, domain.PaymentStatusRefunded, domain.PaymentStatusFailed:
		// Already settled; sweep re-runs land here.
		return 0, nil

	case domain.PaymentStatusPending:
		if booking.HoldRef == "" {
			if _, err := s.bookings.SetPaymentStatus(ctx, token, domain.PaymentStatusPending, domain.PaymentStatusCancelled); err != nil && !errors.Is(err, domain.ErrInvalidState) {
				return 0, err
			}
			return 0, nil
		}
		// A hold exists but authorization was never recorded locally:
		// release it like an authorized one.
		fallthrough

	case domain.PaymentStatusAuthorized:
		if err := s.proc.Release(ctx, booking.HoldRef, token+":release"); err != nil {
			// The hold may have been captured by a racing confirm that
			// then lost the terminal transition. Fall back to refund so
			// the learner is made whole either way.
			log.Printf("release hold for booking %s: %v, trying refund", token, err)
			return s.refund(ctx, booking)
		}
		if _, err := s.bookings.SetPaymentStatus(ctx, token, booking.PaymentStatus, domain.PaymentStatusCancelled); err != nil && !errors.Is(err, domain.ErrInvalidState) {
			return 0, err
		}
		return 0, nil

	case domain.PaymentStatusCaptured:
		return s.refund(ctx, booking)
	}

	return 0, domain.ErrInvalidState
}

func (s *PaymentService) refund(ctx context.Context, booking *domain.Booking) (int64, error) {
	receipt, err := s.proc.Refund(ctx, booking.HoldRef, booking.AmountCents, booking.Token+":refund")
	if err != nil {
		log.Printf("refund failed for booking %s: %v", booking.Token, err)
		return 0, domain.ErrProcessor
	}
	if _, err := s.bookings.SetPaymentStatus(ctx, booking.Token, booking.PaymentStatus, domain.PaymentStatusRefunded); err != nil && !errors.Is(err, domain.ErrInvalidState) {
		return 0, err
	}
	return receipt.AmountCents, nil
}

var _ PaymentUseCase = (*PaymentService)(nil)
