package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
)

// CampaignRepository implements campaign.Repository.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `id, name, state, site_id, configurations, started_at, stopped_at, created_at, updated_at`

func (r *CampaignRepository) Save(ctx context.Context, c *campaign.Campaign) error {
	configs, err := json.Marshal(c.Configurations)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, state=EXCLUDED.state, site_id=EXCLUDED.site_id,
			configurations=EXCLUDED.configurations, started_at=EXCLUDED.started_at,
			stopped_at=EXCLUDED.stopped_at, updated_at=EXCLUDED.updated_at
	`, c.ID, c.Name, c.State, c.SiteID, configs, c.StartedAt, c.StoppedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *CampaignRepository) List(ctx context.Context, filter campaign.Filter, limit int) ([]*campaign.Campaign, error) {
	var w where
	if len(filter.States) > 0 {
		w.add("state = ANY(?)", stringsOf(filter.States))
	}
	if doc := configurationContainment(filter); doc != nil {
		w.add("configurations @> ?", doc)
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + w.String() + ` ORDER BY created_at DESC`
	query += w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// configurationContainment builds a JSONB containment document matching a single
// configuration entry with every requested id.
func configurationContainment(filter campaign.Filter) []byte {
	entry := map[string]string{}
	if filter.VehicleID != "" {
		entry["vehicleId"] = filter.VehicleID
	}
	if filter.ClientID != "" {
		entry["clientId"] = filter.ClientID
	}
	if filter.EndpointID != "" {
		entry["endpointId"] = filter.EndpointID
	}
	if len(entry) == 0 {
		return nil
	}
	doc, _ := json.Marshal([]map[string]string{entry})
	return doc
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var configs []byte
	if err := row.Scan(&c.ID, &c.Name, &c.State, &c.SiteID, &configs, &c.StartedAt, &c.StoppedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(configs) > 0 {
		if err := json.Unmarshal(configs, &c.Configurations); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
