package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mlevkov/expertbooking/internal/domain"
)

type BookingRepository interface {
	// ClaimSlot atomically decrements slot capacity and inserts the booking
	// in one transaction. Returns domain.ErrSlotUnavailable when the slot
	// has no remaining capacity, is closed, or starts within the lead time.
	ClaimSlot(ctx context.Context, booking *domain.Booking, notBefore time.Time) error
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	// SetAuthorized stores the processor hold reference and moves
	// payment_status from pending to authorized.
	SetAuthorized(ctx context.Context, token, holdRef string) (*domain.Booking, error)
	SetPaymentStatus(ctx context.Context, token string, from, to domain.PaymentStatus) (*domain.Booking, error)
	// MarkAwaitingApproval applies the "hold succeeded" transition:
	// status pending -> pending_approval, payment_status -> authorized.
	MarkAwaitingApproval(ctx context.Context, token string) (*domain.Booking, error)
	// ResolveTerminal is the arbiter for every terminal transition: a single
	// conditional update guarded by the current status. Zero rows matched
	// means another actor committed first (domain.ErrAlreadyResolved). Slot
	// capacity is released inside the same transaction.
	ResolveTerminal(ctx context.Context, p TerminalTransition) (*domain.Booking, error)
	ExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Booking, error)
	// UnsettledTerminal lists declined/cancelled bookings whose hold or
	// charge was never settled, so the sweep can retry the release/refund.
	UnsettledTerminal(ctx context.Context) ([]domain.Booking, error)
	// CompleteFinished advances confirmed bookings whose session has ended.
	CompleteFinished(ctx context.Context, now time.Time) (int64, error)
}

// TerminalTransition describes one conditional move into a terminal status.
type TerminalTransition struct {
	Token         string
	From          []domain.BookingStatus
	To            domain.BookingStatus
	PaymentStatus domain.PaymentStatus // empty leaves payment_status untouched
	Reason        string
	// ReleaseSeat gives the slot its capacity back inside the same
	// transaction. Set on cancel/decline/timeout paths; a confirm consumes
	// the seat permanently.
	ReleaseSeat bool
	// HeldBefore additionally requires held_until < HeldBefore, so a sweep
	// never cancels a booking whose lease is still live.
	HeldBefore *time.Time
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, token, learner_id, expert_id, slot_id, session_id, starts_at, ends_at,
	amount_cents, currency, status, payment_status, held_until, hold_ref, notes, decline_reason,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Token, &b.LearnerID, &b.ExpertID, &b.SlotID, &b.SessionID,
		&b.StartsAt, &b.EndsAt, &b.AmountCents, &b.Currency, &b.Status, &b.PaymentStatus,
		&b.HeldUntil, &b.HoldRef, &b.Notes, &b.DeclineReason, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) ClaimSlot(ctx context.Context, booking *domain.Booking, notBefore time.Time) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The conditional decrement is the arbiter: of N concurrent claims on a
	// slot with one seat left, exactly one matches this WHERE clause.
	var (
		expertID   int64
		startsAt   time.Time
		endsAt     time.Time
		priceCents int64
		currency   string
	)
	err = tx.QueryRow(ctx, `UPDATE slots
		SET remaining = remaining - 1, updated_at = now()
		WHERE id = $1 AND available AND remaining > 0 AND starts_at > $2
		RETURNING expert_id, starts_at, ends_at, price_cents, currency`,
		booking.SlotID, notBefore).Scan(&expertID, &startsAt, &endsAt, &priceCents, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSlotUnavailable
		}
		return err
	}

	booking.ExpertID = expertID
	booking.StartsAt = startsAt
	booking.EndsAt = endsAt
	booking.AmountCents = priceCents
	booking.Currency = currency
	booking.Status = domain.BookingStatusPending
	booking.PaymentStatus = domain.PaymentStatusPending

	if err := tx.QueryRow(ctx, `INSERT INTO bookings
		(token, learner_id, expert_id, slot_id, session_id, starts_at, ends_at,
		 amount_cents, currency, status, payment_status, held_until, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		booking.Token, booking.LearnerID, booking.ExpertID, booking.SlotID, booking.SessionID,
		booking.StartsAt, booking.EndsAt, booking.AmountCents, booking.Currency,
		booking.Status, booking.PaymentStatus, booking.HeldUntil, booking.Notes).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) SetAuthorized(ctx context.Context, token, holdRef string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings
		SET payment_status = $1, hold_ref = $2, updated_at = now()
		WHERE token = $3 AND payment_status = $4
		RETURNING `+bookingColumns,
		domain.PaymentStatusAuthorized, holdRef, token, domain.PaymentStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidState
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) SetPaymentStatus(ctx context.Context, token string, from, to domain.PaymentStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings
		SET payment_status = $1, updated_at = now()
		WHERE token = $2 AND payment_status = $3
		RETURNING `+bookingColumns, to, token, from))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidState
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) MarkAwaitingApproval(ctx context.Context, token string) (*domain.Booking, error) {
	// Tolerates both orderings: the webhook may land before or after the
	// synchronous authorize call stored the hold reference.
	b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings
		SET payment_status = $1, status = $2, updated_at = now()
		WHERE token = $3 AND status = $4 AND payment_status = ANY($5)
		RETURNING `+bookingColumns,
		domain.PaymentStatusAuthorized, domain.BookingStatusPendingApproval,
		token, domain.BookingStatusPending,
		[]string{string(domain.PaymentStatusPending), string(domain.PaymentStatusAuthorized)}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidState
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ResolveTerminal(ctx context.Context, p TerminalTransition) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	from := make([]string, 0, len(p.From))
	for _, s := range p.From {
		from = append(from, string(s))
	}

	b, err := scanBooking(tx.QueryRow(ctx, `UPDATE bookings
		SET status = $1,
		    payment_status = COALESCE(NULLIF($2, ''), payment_status),
		    decline_reason = $3,
		    updated_at = now()
		WHERE token = $4 AND status = ANY($5)
		  AND ($6::timestamptz IS NULL OR held_until < $6)
		RETURNING `+bookingColumns,
		p.To, string(p.PaymentStatus), p.Reason, p.Token, from, p.HeldBefore))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlreadyResolved
		}
		return nil, err
	}

	// Release the seat in the same transaction so the claim/release pair is
	// always balanced. Guarded so replays can never push remaining past
	// capacity.
	if p.ReleaseSeat {
		if _, err := tx.Exec(ctx, `UPDATE slots
			SET remaining = remaining + 1, updated_at = now()
			WHERE id = $1 AND remaining < capacity`, b.SlotID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ANY($1) AND held_until < $2`,
		[]string{string(domain.BookingStatusPending), string(domain.BookingStatusPendingApproval)}, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *PGBookingRepository) UnsettledTerminal(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ANY($1) AND payment_status = ANY($2)`,
		[]string{string(domain.BookingStatusDeclined), string(domain.BookingStatusCancelled)},
		[]string{
			string(domain.PaymentStatusPending),
			string(domain.PaymentStatusAuthorized),
			string(domain.PaymentStatusCaptured),
		})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *PGBookingRepository) CompleteFinished(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE status = $2 AND ends_at < $3`,
		domain.BookingStatusCompleted, domain.BookingStatusConfirmed, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
