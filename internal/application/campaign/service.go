package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
)

// Scheduler is the part of the command scheduler campaign transitions use.
type Scheduler interface {
	SaveAndSchedule(ctx context.Context, cmd *command.Command, override bool) (*command.Command, error)
	CancelPending(ctx context.Context, vehicleID string, campaignID *uuid.UUID) error
}

// Presence reports whether a vehicle is online.
type Presence interface {
	IsOnline(ctx context.Context, vehicleID string) (bool, error)
}

// Trigger wakes the outbox pusher.
type Trigger interface {
	Trigger()
}

// Options tune campaign validation.
type Options struct {
	// RequireOnline rejects starting a campaign while a configured vehicle
	// is offline.
	RequireOnline bool
}

// Service manages campaign lifecycle.
type Service struct {
	campaigns campaign.Repository
	outbox    outbox.Repository
	pusher    Trigger
	scheduler Scheduler
	presence  Presence
	opts      Options
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(
	campaigns campaign.Repository,
	outboxRepo outbox.Repository,
	pusher Trigger,
	scheduler Scheduler,
	presence Presence,
	opts Options,
	logger zerolog.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		outbox:    outboxRepo,
		pusher:    pusher,
		scheduler: scheduler,
		presence:  presence,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With().Str("service", "campaign").Logger(),
	}
}

// CreateInput describes a new campaign. State may be CREATED or RUNNING.
type CreateInput struct {
	Name           string
	SiteID         string
	State          campaign.State
	Configurations []campaign.Configuration
}

// PatchInput carries optional changes. Nil fields are left untouched.
type PatchInput struct {
	Name           *string
	Configurations []campaign.Configuration
	State          *campaign.State
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*campaign.Campaign, error) {
	var v apperror.Validation
	state := in.State
	if state == "" {
		state = campaign.StateCreated
	}
	if strings.TrimSpace(in.Name) == "" {
		v.Add(apperror.CodeValidation, "name is required")
	}
	if strings.TrimSpace(in.SiteID) == "" {
		v.Add(apperror.CodeValidation, "siteId is required")
	}
	if state != campaign.StateCreated && state != campaign.StateRunning {
		v.Add(apperror.CodeValidation, "campaigns can only be created in state CREATED or RUNNING")
	}
	if err := s.validateConfigurations(ctx, &v, in.Configurations, state, nil); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	c := campaign.New(in.Name, in.SiteID, in.Configurations)
	event := ""
	if state == campaign.StateRunning {
		event = campaign.EventStart
		if err := c.Fire(ctx, event, s.now()); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, c, outbox.MethodPost); err != nil {
		return nil, err
	}
	s.logger.Info().Str("campaign_id", c.ID.String()).Str("state", string(c.State)).Msg("campaign created")

	if err := s.sendVehicleCommands(ctx, c, event); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Patch(ctx context.Context, id uuid.UUID, in PatchInput) (*campaign.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.New(apperror.CodeNotFound, "campaign not found")
	}

	var v apperror.Validation
	if in.Configurations != nil && c.State == campaign.StateRunning {
		v.Add(apperror.CodeInvalidOperation, "not allowed to change configuration of a running campaign")
	}

	configs := c.Configurations
	if in.Configurations != nil {
		configs = in.Configurations
	}
	stateToCheck := c.State
	event := ""
	if in.State != nil {
		stateToCheck = *in.State
		candidate := *c
		candidate.Configurations = configs
		event, err = candidate.EventFor(*in.State)
		if err != nil || !candidate.Can(event) {
			v.Add(apperror.CodeInvalidOperation, fmt.Sprintf("cannot move campaign from %s to %s", c.State, *in.State))
			event = ""
		}
	}
	if err := s.validateConfigurations(ctx, &v, configs, stateToCheck, c); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		c.Name = *in.Name
	}
	c.Configurations = configs
	if event == campaign.EventAbort {
		// The stored campaign must still be active here so the scheduler
		// finds the command it is currently running.
		if err := s.cancelVehicleCommands(ctx, c); err != nil {
			return nil, err
		}
	}
	if event != "" {
		if err := c.Fire(ctx, event, s.now()); err != nil {
			return nil, err
		}
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, c, outbox.MethodPatch); err != nil {
		return nil, err
	}
	s.logger.Info().Str("campaign_id", c.ID.String()).Str("state", string(c.State)).Msg("campaign updated")

	if err := s.sendVehicleCommands(ctx, c, event); err != nil {
		return nil, err
	}
	return c, nil
}

// ConfirmCompletion finalizes a COMPLETE_PENDING campaign once vehicleID
// reports completion.
func (s *Service) ConfirmCompletion(ctx context.Context, c *campaign.Campaign, vehicleID string) (*campaign.Campaign, error) {
	if !c.ReadyToFinalize(vehicleID) {
		return c, nil
	}
	if err := c.Fire(ctx, campaign.EventFinalize, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c, outbox.MethodPatch); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("campaign_id", c.ID.String()).
		Str("vehicle_id", vehicleID).
		Msg("campaign completed")
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.New(apperror.CodeNotFound, "campaign not found")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, filter campaign.Filter, limit int) ([]*campaign.Campaign, error) {
	return s.campaigns.List(ctx, filter, limit)
}

// save persists c and queues it for the external system of record.
func (s *Service) save(ctx context.Context, c *campaign.Campaign, method outbox.Method) error {
	if err := s.campaigns.Save(ctx, c); err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	if err := s.outbox.Create(ctx, outbox.NewMessage(outbox.KindCampaign, c.ID, method)); err != nil {
		return fmt.Errorf("enqueue campaign: %w", err)
	}
	s.pusher.Trigger()
	return nil
}

func commandFor(event string) (command.Type, bool) {
	switch event {
	case campaign.EventStart:
		return command.TypeStartCampaign, true
	case campaign.EventRequestCompletion:
		return command.TypeCompleteCampaign, true
	case campaign.EventAbort:
		return command.TypeAbortCampaign, true
	}
	return "", false
}

// cancelVehicleCommands aborts the campaign's pending work on every
// configured vehicle.
func (s *Service) cancelVehicleCommands(ctx context.Context, c *campaign.Campaign) error {
	id := c.ID
	for _, vehicleID := range c.VehicleIDs() {
		if err := s.scheduler.CancelPending(ctx, vehicleID, &id); err != nil {
			return fmt.Errorf("cancel pending commands of %s: %w", vehicleID, err)
		}
	}
	return nil
}

// sendVehicleCommands emits the system command implied by event to every
// configured vehicle.
func (s *Service) sendVehicleCommands(ctx context.Context, c *campaign.Campaign, event string) error {
	typ, ok := commandFor(event)
	if !ok {
		return nil
	}
	for _, vehicleID := range c.VehicleIDs() {
		cmd := command.New(vehicleID, c.ID, typ, command.Payload{})
		if _, err := s.scheduler.SaveAndSchedule(ctx, cmd, true); err != nil {
			return fmt.Errorf("send %s to %s: %w", typ, vehicleID, err)
		}
	}
	return nil
}

// validateConfigurations enforces that a RUNNING campaign holds its client,
// endpoint and vehicle ids exclusively.
func (s *Service) validateConfigurations(ctx context.Context, v *apperror.Validation, configs []campaign.Configuration, state campaign.State, self *campaign.Campaign) error {
	if state != campaign.StateRunning {
		return nil
	}
	running := []campaign.State{campaign.StateRunning}
	taken := func(filter campaign.Filter) (bool, error) {
		filter.States = running
		found, err := s.campaigns.List(ctx, filter, 2)
		if err != nil {
			return false, err
		}
		for _, other := range found {
			if self == nil || other.ID != self.ID {
				return true, nil
			}
		}
		return false, nil
	}

	for _, cfg := range configs {
		checks := []struct {
			value  string
			label  string
			filter campaign.Filter
		}{
			{cfg.ClientID, "client ID", campaign.Filter{ClientID: cfg.ClientID}},
			{cfg.EndpointID, "endpoint ID", campaign.Filter{EndpointID: cfg.EndpointID}},
			{cfg.VehicleID, "vehicle ID", campaign.Filter{VehicleID: cfg.VehicleID}},
		}
		for _, check := range checks {
			if strings.TrimSpace(check.value) == "" {
				continue
			}
			ok, err := taken(check.filter)
			if err != nil {
				return fmt.Errorf("check %s uniqueness: %w", check.label, err)
			}
			if ok {
				v.Add(apperror.CodeInvalidOperation, fmt.Sprintf("%s %s already assigned to a running campaign", check.label, check.value))
			}
		}

		if s.opts.RequireOnline && cfg.VehicleID != "" {
			online, err := s.presence.IsOnline(ctx, cfg.VehicleID)
			if err != nil {
				return err
			}
			if !online {
				v.Add(apperror.CodeNotAvailable, fmt.Sprintf("vehicle %s is not online", cfg.VehicleID))
			}
		}
	}
	return nil
}
