package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/backend"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

const (
	ModeOnline  = "online"
	ModeOffline = "offline"
)

// ResultSource serves externally produced measurements.
type ResultSource interface {
	PullResults(ctx context.Context, campaignID uuid.UUID, fromID *int64, short bool) ([]backend.Result, error)
}

// UpdatePublisher forwards live updates to a vehicle's observers.
type UpdatePublisher interface {
	Publish(key string, value *stream.Update) (int, error)
}

// Puller reconciles measurements from the external backend. The online and
// offline modes share one lock so they never run concurrently.
type Puller struct {
	mu           sync.Mutex
	campaigns    campaign.Repository
	measurements measurement.Repository
	source       ResultSource
	updates      UpdatePublisher
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewPuller(
	campaigns campaign.Repository,
	measurements measurement.Repository,
	source ResultSource,
	updates UpdatePublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Puller {
	return &Puller{
		campaigns:    campaigns,
		measurements: measurements,
		source:       source,
		updates:      updates,
		metrics:      m,
		logger:       logger.With().Str("service", "puller").Logger(),
	}
}

// OnlinePull reconciles running campaigns with the short timeout. It returns
// false when another pull holds the lock.
func (p *Puller) OnlinePull(ctx context.Context) bool {
	return p.run(ctx, ModeOnline, campaign.Filter{States: []campaign.State{campaign.StateRunning}})
}

// OfflinePull reconciles every campaign with the long timeout.
func (p *Puller) OfflinePull(ctx context.Context) bool {
	return p.run(ctx, ModeOffline, campaign.Filter{})
}

func (p *Puller) run(ctx context.Context, mode string, filter campaign.Filter) bool {
	if !p.mu.TryLock() {
		p.logger.Debug().Str("mode", mode).Msg("measurement pull already running, skipping")
		return false
	}
	defer p.mu.Unlock()

	campaigns, err := p.campaigns.List(ctx, filter, 0)
	if err != nil {
		p.logger.Error().Err(err).Str("mode", mode).Msg("failed to list campaigns for pull")
		return true
	}
	if len(campaigns) == 0 {
		return true
	}

	p.logger.Debug().Str("mode", mode).Int("campaigns", len(campaigns)).Msg("measurement pull started")
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		if err := p.pull(ctx, c, mode); err != nil {
			p.metrics.Pull(mode, false)
			p.logger.Error().Err(err).
				Str("mode", mode).
				Str("campaign_id", c.ID.String()).
				Msg("failed to pull measurements")
			continue
		}
		p.metrics.Pull(mode, true)
	}
	p.logger.Debug().Str("mode", mode).Msg("measurement pull finished")
	return true
}

func (p *Puller) pull(ctx context.Context, c *campaign.Campaign, mode string) error {
	latest, err := p.measurements.LatestForCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load latest measurement: %w", err)
	}
	var fromID *int64
	if latest != nil {
		next := latest.MeasurementID + 1
		fromID = &next
	}

	results, err := p.source.PullResults(ctx, c.ID, fromID, mode == ModeOnline)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	stored := make([]*measurement.Measurement, 0, len(results))
	for _, r := range results {
		if fromID != nil && r.MeasurementID < *fromID {
			continue
		}
		stored = append(stored, r.Measurement(c.ID))
	}
	if len(stored) == 0 {
		return nil
	}
	if err := p.measurements.SaveAll(ctx, stored); err != nil {
		return fmt.Errorf("save measurements: %w", err)
	}
	p.metrics.MeasurementsPulled(len(stored))
	p.logger.Info().
		Str("mode", mode).
		Str("campaign_id", c.ID.String()).
		Int("count", len(stored)).
		Msg("measurements stored")

	p.publish(c, stored)
	return nil
}

// publish sends valid measurements to every vehicle configured on c.
func (p *Puller) publish(c *campaign.Campaign, ms []*measurement.Measurement) {
	valid := make([]*measurement.Measurement, 0, len(ms))
	for _, m := range ms {
		if m.Valid() {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return
	}
	for _, vehicleID := range c.VehicleIDs() {
		if _, err := p.updates.Publish(vehicleID, stream.MeasurementsUpdate(valid)); err != nil {
			p.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("failed to publish measurements")
		}
	}
}

// Every calls fn each interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
