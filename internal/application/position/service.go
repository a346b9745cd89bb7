package position

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

// Trigger wakes the outbox pusher.
type Trigger interface {
	Trigger()
}

// UpdatePublisher forwards live updates to a vehicle's observers.
type UpdatePublisher interface {
	Publish(key string, value *stream.Update) (int, error)
}

// Service records vehicle positions.
type Service struct {
	positions position.Repository
	campaigns campaign.Repository
	outbox    outbox.Repository
	pusher    Trigger
	updates   UpdatePublisher
	logger    zerolog.Logger
}

func NewService(
	positions position.Repository,
	campaigns campaign.Repository,
	outboxRepo outbox.Repository,
	pusher Trigger,
	updates UpdatePublisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		positions: positions,
		campaigns: campaigns,
		outbox:    outboxRepo,
		pusher:    pusher,
		updates:   updates,
		logger:    logger.With().Str("service", "position").Logger(),
	}
}

// Post stores points reported by vehicleID for a campaign, queues them for
// the external system and publishes them to live observers.
func (s *Service) Post(ctx context.Context, vehicleID string, campaignID uuid.UUID, points []position.Point) (*position.Position, error) {
	var v apperror.Validation
	if len(points) == 0 {
		v.Add(apperror.CodeValidation, "coordinates are required")
	}
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		v.Add(apperror.CodeNotFound, "campaign not found")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	p := position.New(vehicleID, campaignID, points)
	if err := s.positions.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}
	if err := s.outbox.Create(ctx, outbox.NewMessage(outbox.KindPosition, p.ID, outbox.MethodPost)); err != nil {
		return nil, fmt.Errorf("enqueue position: %w", err)
	}
	s.pusher.Trigger()

	if _, err := s.updates.Publish(vehicleID, stream.PositionUpdate(p)); err != nil {
		s.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("failed to publish position update")
	}
	s.logger.Debug().
		Str("vehicle_id", vehicleID).
		Str("campaign_id", campaignID.String()).
		Int("points", len(points)).
		Msg("position recorded")
	return p, nil
}
