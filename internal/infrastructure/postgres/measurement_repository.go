package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
)

// MeasurementRepository implements measurement.Repository.
type MeasurementRepository struct {
	pool *pgxpool.Pool
}

func NewMeasurementRepository(pool *pgxpool.Pool) *MeasurementRepository {
	return &MeasurementRepository{pool: pool}
}

const measurementColumns = `id, measurement_id, campaign_id, created_at, data_rate, latency, coordinates`

// SaveAll inserts measurements; sequence ids already stored for the
// campaign are skipped.
func (r *MeasurementRepository) SaveAll(ctx context.Context, ms []*measurement.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range ms {
		var coords []byte
		if m.Coordinates != nil {
			data, err := json.Marshal(m.Coordinates)
			if err != nil {
				return err
			}
			coords = data
		}
		batch.Queue(`
			INSERT INTO measurements (`+measurementColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (campaign_id, measurement_id) DO NOTHING
		`, m.ID, m.MeasurementID, m.CampaignID, m.CreatedAt, m.DataRate, m.Latency, coords)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *MeasurementRepository) LatestForCampaign(ctx context.Context, campaignID uuid.UUID) (*measurement.Measurement, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+measurementColumns+` FROM measurements
		WHERE campaign_id=$1 ORDER BY measurement_id DESC LIMIT 1
	`, campaignID)
	m, err := scanMeasurement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *MeasurementRepository) List(ctx context.Context, campaignID uuid.UUID, limit int) ([]*measurement.Measurement, error) {
	var w where
	w.add("campaign_id = ?", campaignID)
	query := `SELECT ` + measurementColumns + ` FROM measurements` + w.String() + ` ORDER BY measurement_id ASC`
	query += w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ms []*measurement.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

func scanMeasurement(row pgx.Row) (*measurement.Measurement, error) {
	var m measurement.Measurement
	var coords []byte
	if err := row.Scan(&m.ID, &m.MeasurementID, &m.CampaignID, &m.CreatedAt, &m.DataRate, &m.Latency, &coords); err != nil {
		return nil, err
	}
	if len(coords) > 0 {
		if err := json.Unmarshal(coords, &m.Coordinates); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
