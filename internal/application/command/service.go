package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
)

// Scheduler persists commands and re-evaluates the vehicle queue.
type Scheduler interface {
	SaveAndSchedule(ctx context.Context, cmd *command.Command, override bool) (*command.Command, error)
}

// Service handles operator issued commands.
type Service struct {
	commands  command.Repository
	campaigns campaign.Repository
	scheduler Scheduler
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(commands command.Repository, campaigns campaign.Repository, scheduler Scheduler, logger zerolog.Logger) *Service {
	return &Service{
		commands:  commands,
		campaigns: campaigns,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger.With().Str("service", "command").Logger(),
	}
}

// PostInput describes an operator command.
type PostInput struct {
	CampaignID uuid.UUID
	Type       command.Type
	Payload    command.Payload
}

// Post queues a command for vehicleID within an active campaign.
func (s *Service) Post(ctx context.Context, vehicleID string, in PostInput) (*command.Command, error) {
	var v apperror.Validation
	if in.Type == "" {
		in.Type = command.TypeGoTo
	}
	if !in.Type.Valid() {
		v.Add(apperror.CodeValidation, "unknown command type")
	}
	if in.Type == command.TypeGoTo && in.Payload.Coordinates == nil {
		v.Add(apperror.CodeInvalidConfiguration, "coordinates must be present for GO_TO command")
	}
	if err := s.validateCampaign(ctx, &v, in.CampaignID, vehicleID); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	cmd := command.New(vehicleID, in.CampaignID, in.Type, in.Payload)
	saved, err := s.scheduler.SaveAndSchedule(ctx, cmd, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("vehicle_id", vehicleID).
		Str("command_id", saved.ID.String()).
		Str("type", string(saved.Type)).
		Msg("command queued")
	return saved, nil
}

// Patch lets an operator move a pending command. Aborts are pushed to the
// vehicle immediately.
func (s *Service) Patch(ctx context.Context, vehicleID string, commandID uuid.UUID, target command.State) (*command.Command, error) {
	cmd, err := s.commands.GetByID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, apperror.New(apperror.CodeNotFound, "command not found")
	}

	var v apperror.Validation
	if cmd.VehicleID != vehicleID {
		v.Add(apperror.CodeNotFound, "invalid command for given vehicle")
	}
	if err := s.validateCampaign(ctx, &v, cmd.CampaignID, vehicleID); err != nil {
		return nil, err
	}
	if !cmd.IsPending() {
		v.Add(apperror.CodeInvalidOperation, "not allowed to set state of a command that is no longer pending")
	} else if !cmd.CanTransitionTo(target) {
		v.Add(apperror.CodeInvalidOperation, "invalid target state "+string(target))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	switch target {
	case command.StateAborted:
		err = cmd.Abort(s.now())
	case command.StateRejected:
		err = cmd.Reject(s.now())
	case command.StateAcknowledged:
		err = cmd.Acknowledge(s.now())
	default:
		return nil, apperror.New(apperror.CodeInvalidOperation, "invalid target state "+string(target))
	}
	if err != nil {
		return nil, err
	}
	return s.scheduler.SaveAndSchedule(ctx, cmd, target == command.StateAborted)
}

func (s *Service) validateCampaign(ctx context.Context, v *apperror.Validation, campaignID uuid.UUID, vehicleID string) error {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		v.Add(apperror.CodeNotFound, "campaign not found")
		return nil
	}
	if !c.State.IsActive() {
		v.Add(apperror.CodeInvalidOperation, "campaign must be active")
	}
	if !c.HasVehicle(vehicleID) {
		v.Add(apperror.CodeInvalidOperation, "vehicle is not configured for given campaign")
	}
	return nil
}

// ListInput filters a vehicle's command history.
type ListInput struct {
	CampaignID *uuid.UUID
	State      command.State
	Pending    bool
	Limit      int
}

func (s *Service) List(ctx context.Context, vehicleID string, in ListInput) ([]*command.Command, error) {
	filter := command.Filter{VehicleID: vehicleID, CampaignID: in.CampaignID}
	switch {
	case in.State != "":
		filter.States = []command.State{in.State}
	case in.Pending:
		filter.States = command.PendingStates
	}
	return s.commands.List(ctx, filter, command.Order{Field: command.OrderByMeasuredAt, Desc: true}, in.Limit)
}
