package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
)

// StatusRepository implements status.Repository.
type StatusRepository struct {
	pool *pgxpool.Pool
}

func NewStatusRepository(pool *pgxpool.Pool) *StatusRepository {
	return &StatusRepository{pool: pool}
}

func (r *StatusRepository) Save(ctx context.Context, e *status.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO status_events (id, vehicle_id, event_type, command_id, measured_at, created_at, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.VehicleID, e.Type, e.CommandID, e.MeasuredAt, e.CreatedAt, e.Payload)
	return err
}

func (r *StatusRepository) List(ctx context.Context, filter status.Filter, limit int) ([]*status.Event, error) {
	var w where
	if filter.VehicleID != "" {
		w.add("vehicle_id = ?", filter.VehicleID)
	}
	if len(filter.Types) > 0 {
		w.add("event_type = ANY(?)", stringsOf(filter.Types))
	}
	query := `SELECT id, vehicle_id, event_type, command_id, measured_at, created_at, payload FROM status_events` +
		w.String() + ` ORDER BY created_at DESC`
	query += w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []*status.Event
	for rows.Next() {
		var e status.Event
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Type, &e.CommandID, &e.MeasuredAt, &e.CreatedAt, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
