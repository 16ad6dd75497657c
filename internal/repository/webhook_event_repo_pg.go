package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mlevkov/expertbooking/internal/domain"
)

type WebhookEventRepository interface {
	// InsertOnce appends the event to the dedup ledger. Returns false when a
	// row with the same external event id already exists; the unique index
	// makes the check-and-insert a single atomic statement.
	InsertOnce(ctx context.Context, event *domain.WebhookEvent) (bool, error)
	// RecordOutcome fills in the processing outcome of a freshly inserted
	// event. The row itself is never rewritten beyond this one field.
	RecordOutcome(ctx context.Context, eventID, outcome string) error
}

type PGWebhookEventRepository struct {
	db *pgxpool.Pool
}

func NewWebhookEventRepository(db *pgxpool.Pool) WebhookEventRepository {
	return &PGWebhookEventRepository{db: db}
}

func (r *PGWebhookEventRepository) InsertOnce(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO webhook_events (event_id, event_type, booking_token, outcome)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.EventType, event.BookingToken, event.Outcome)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGWebhookEventRepository) RecordOutcome(ctx context.Context, eventID, outcome string) error {
	_, err := r.db.Exec(ctx, `UPDATE webhook_events SET outcome = $1 WHERE event_id = $2`, outcome, eventID)
	return err
}

var _ WebhookEventRepository = (*PGWebhookEventRepository)(nil)
