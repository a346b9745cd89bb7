package boltdb

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
)

// CampaignRepository implements campaign.Repository.
type CampaignRepository struct {
	db *bolt.DB
}

func (r *CampaignRepository) Save(_ context.Context, c *campaign.Campaign) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketCampaigns, c.ID.String(), c)
	})
}

func (r *CampaignRepository) GetByID(_ context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	return get[campaign.Campaign](r.db, bucketCampaigns, id.String())
}

func (r *CampaignRepository) List(_ context.Context, filter campaign.Filter, limit int) ([]*campaign.Campaign, error) {
	items, err := scan(r.db, bucketCampaigns, filter.Match)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return truncate(items, limit), nil
}

// CommandRepository implements command.Repository.
type CommandRepository struct {
	db *bolt.DB
}

func (r *CommandRepository) Save(_ context.Context, c *command.Command) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketCommands, c.ID.String(), c)
	})
}

func (r *CommandRepository) SaveAll(_ context.Context, cmds []*command.Command) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		for _, c := range cmds {
			if err := put(tx, bucketCommands, c.ID.String(), c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CommandRepository) GetByID(_ context.Context, id uuid.UUID) (*command.Command, error) {
	return get[command.Command](r.db, bucketCommands, id.String())
}

func (r *CommandRepository) List(_ context.Context, filter command.Filter, order command.Order, limit int) ([]*command.Command, error) {
	items, err := scan(r.db, bucketCommands, filter.Match)
	if err != nil {
		return nil, err
	}
	key := func(c *command.Command) time.Time {
		switch order.Field {
		case command.OrderByMeasuredAt:
			return c.MeasuredAt
		case command.OrderByLatestSendAt:
			if c.LatestSendAt != nil {
				return *c.LatestSendAt
			}
			return time.Time{}
		}
		return c.CreatedAt
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if a.Equal(b) {
			return items[i].ID.String() < items[j].ID.String()
		}
		if order.Desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	return truncate(items, limit), nil
}

// StatusRepository implements status.Repository.
type StatusRepository struct {
	db *bolt.DB
}

func (r *StatusRepository) Save(_ context.Context, e *status.Event) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketStatusEvents, e.ID.String(), e)
	})
}

func (r *StatusRepository) List(_ context.Context, filter status.Filter, limit int) ([]*status.Event, error) {
	items, err := scan(r.db, bucketStatusEvents, filter.Match)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return truncate(items, limit), nil
}

// OutboxRepository implements outbox.Repository.
type OutboxRepository struct {
	db *bolt.DB
}

func (r *OutboxRepository) Create(_ context.Context, m *outbox.Message) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketOutbox, m.ID.String(), m)
	})
}

func (r *OutboxRepository) ListPending(_ context.Context, kind outbox.Kind) ([]*outbox.Message, error) {
	items, err := scan(r.db, bucketOutbox, func(m *outbox.Message) bool { return m.Kind == kind })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *OutboxRepository) Update(_ context.Context, m *outbox.Message) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketOutbox).Get([]byte(m.ID.String())) == nil {
			return nil
		}
		return put(tx, bucketOutbox, m.ID.String(), m)
	})
}

func (r *OutboxRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).Delete([]byte(id.String()))
	})
}

func (r *OutboxRepository) Count(_ context.Context, kind outbox.Kind) (int, error) {
	items, err := scan(r.db, bucketOutbox, func(m *outbox.Message) bool { return m.Kind == kind })
	return len(items), err
}

// MeasurementRepository implements measurement.Repository. Keys are
// campaign id plus zero-padded sequence so a campaign's measurements are
// contiguous and ordered.
type MeasurementRepository struct {
	db *bolt.DB
}

func measurementKey(campaignID uuid.UUID, seq int64) string {
	return campaignID.String() + "/" + padSeq(seq)
}

func padSeq(seq int64) string {
	s := strconv.FormatInt(seq, 10)
	for len(s) < 20 {
		s = "0" + s
	}
	return s
}

func (r *MeasurementRepository) SaveAll(_ context.Context, ms []*measurement.Measurement) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeasurements)
		for _, m := range ms {
			key := measurementKey(m.CampaignID, m.MeasurementID)
			if b.Get([]byte(key)) != nil {
				continue
			}
			if err := put(tx, bucketMeasurements, key, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MeasurementRepository) LatestForCampaign(ctx context.Context, campaignID uuid.UUID) (*measurement.Measurement, error) {
	items, err := r.List(ctx, campaignID, 0)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[len(items)-1], nil
}

func (r *MeasurementRepository) List(_ context.Context, campaignID uuid.UUID, limit int) ([]*measurement.Measurement, error) {
	items, err := scan(r.db, bucketMeasurements, func(m *measurement.Measurement) bool {
		return m.CampaignID == campaignID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MeasurementID < items[j].MeasurementID
	})
	return truncate(items, limit), nil
}

// PositionRepository implements position.Repository.
type PositionRepository struct {
	db *bolt.DB
}

func (r *PositionRepository) Save(_ context.Context, p *position.Position) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketPositions, p.ID.String(), p)
	})
}

func (r *PositionRepository) GetByID(_ context.Context, id uuid.UUID) (*position.Position, error) {
	return get[position.Position](r.db, bucketPositions, id.String())
}
