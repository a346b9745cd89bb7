package presence

import (
	"context"
	"fmt"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
)

// Service answers where a vehicle is in its lifecycle.
type Service struct {
	statuses  status.Repository
	campaigns campaign.Repository
}

func NewService(statuses status.Repository, campaigns campaign.Repository) *Service {
	return &Service{statuses: statuses, campaigns: campaigns}
}

// IsOnline is true iff the latest ONLINE or SHUTDOWN event is ONLINE.
func (s *Service) IsOnline(ctx context.Context, vehicleID string) (bool, error) {
	events, err := s.statuses.List(ctx, status.Filter{VehicleID: vehicleID, Types: status.PresenceTypes}, 1)
	if err != nil {
		return false, fmt.Errorf("load presence of %s: %w", vehicleID, err)
	}
	return len(events) > 0 && events[0].Type == status.TypeOnline, nil
}

// RunningCampaign returns the most recently created RUNNING campaign that
// configures the vehicle, or nil.
func (s *Service) RunningCampaign(ctx context.Context, vehicleID string) (*campaign.Campaign, error) {
	campaigns, err := s.campaigns.List(ctx, campaign.Filter{
		States:    []campaign.State{campaign.StateRunning},
		VehicleID: vehicleID,
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("load running campaign of %s: %w", vehicleID, err)
	}
	if len(campaigns) == 0 {
		return nil, nil
	}
	return campaigns[0], nil
}
