package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
)

// PositionRepository implements position.Repository.
type PositionRepository struct {
	pool *pgxpool.Pool
}

func NewPositionRepository(pool *pgxpool.Pool) *PositionRepository {
	return &PositionRepository{pool: pool}
}

func (r *PositionRepository) Save(ctx context.Context, p *position.Position) error {
	coords, err := json.Marshal(p.Coordinates)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO positions (id, vehicle_id, campaign_id, coordinates, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET coordinates=EXCLUDED.coordinates
	`, p.ID, p.VehicleID, p.CampaignID, coords, p.CreatedAt)
	return err
}

func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	var p position.Position
	var coords []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, vehicle_id, campaign_id, coordinates, created_at FROM positions WHERE id=$1
	`, id).Scan(&p.ID, &p.VehicleID, &p.CampaignID, &coords, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coords, &p.Coordinates); err != nil {
		return nil, err
	}
	return &p, nil
}
