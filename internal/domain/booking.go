package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "pending"
	BookingStatusPendingApproval BookingStatus = "pending_approval"
	BookingStatusConfirmed       BookingStatus = "confirmed"
	BookingStatusDeclined        BookingStatus = "declined"
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusCompleted       BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Terminal reports whether no further status transition is permitted.
// confirmed is not terminal: it still advances to completed once the
// session end time passes.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusDeclined, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID            int64
	Token         string
	LearnerID     int64
	ExpertID      int64
	SlotID        int64
	SessionID     int64
	StartsAt      time.Time
	EndsAt        time.Time
	AmountCents   int64
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	HeldUntil     time.Time
	HoldRef       string
	Notes         string
	DeclineReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
