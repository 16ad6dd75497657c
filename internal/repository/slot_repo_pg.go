package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mlevkov/expertbooking/internal/domain"
)

type SlotRepository interface {
	ListOpen(ctx context.Context, after time.Time) ([]domain.Slot, error)
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
}

type PGSlotRepository struct {
	db *pgxpool.Pool
}

func NewSlotRepository(db *pgxpool.Pool) SlotRepository {
	return &PGSlotRepository{db: db}
}

const slotColumns = `id, expert_id, starts_at, ends_at, capacity, remaining, available,
	price_cents, currency, created_at, updated_at`

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.ID, &s.ExpertID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.Remaining,
		&s.Available, &s.PriceCents, &s.Currency, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGSlotRepository) ListOpen(ctx context.Context, after time.Time) ([]domain.Slot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+slotColumns+` FROM slots
		WHERE available AND remaining > 0 AND starts_at > $1
		ORDER BY starts_at`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PGSlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	s, err := scanSlot(r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

var _ SlotRepository = (*PGSlotRepository)(nil)
