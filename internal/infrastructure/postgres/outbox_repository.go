package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
)

// OutboxRepository implements outbox.Repository.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Create(ctx context.Context, m *outbox.Message) error {
	errs, err := json.Marshal(m.Errors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, kind, ref_id, method, latest_attempt_at, errors, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.Kind, m.RefID, m.Method, m.LatestAttemptAt, errs, m.CreatedAt)
	return err
}

func (r *OutboxRepository) ListPending(ctx context.Context, kind outbox.Kind) ([]*outbox.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, ref_id, method, latest_attempt_at, errors, created_at
		FROM outbox_messages WHERE kind=$1 ORDER BY created_at ASC, id
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []*outbox.Message
	for rows.Next() {
		var m outbox.Message
		var errs []byte
		if err := rows.Scan(&m.ID, &m.Kind, &m.RefID, &m.Method, &m.LatestAttemptAt, &errs, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(errs, &m.Errors); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (r *OutboxRepository) Update(ctx context.Context, m *outbox.Message) error {
	errs, err := json.Marshal(m.Errors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE outbox_messages SET latest_attempt_at=$1, errors=$2 WHERE id=$3
	`, m.LatestAttemptAt, errs, m.ID)
	return err
}

func (r *OutboxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM outbox_messages WHERE id=$1`, id)
	return err
}

func (r *OutboxRepository) Count(ctx context.Context, kind outbox.Kind) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_messages WHERE kind=$1`, kind).Scan(&n)
	return n, err
}
