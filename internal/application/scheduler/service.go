package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
)

// Publisher delivers a command to its vehicle and persists the delivery.
type Publisher interface {
	Publish(ctx context.Context, cmd *command.Command) error
}

// Presence reports vehicle availability.
type Presence interface {
	IsOnline(ctx context.Context, vehicleID string) (bool, error)
	RunningCampaign(ctx context.Context, vehicleID string) (*campaign.Campaign, error)
}

// Service decides which command each vehicle receives next. Every entry
// point re-queries the store, so calling it redundantly is a no-op.
type Service struct {
	commands  command.Repository
	presence  Presence
	publisher Publisher
	locks     *keyedMutex
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(commands command.Repository, presence Presence, publisher Publisher, logger zerolog.Logger) *Service {
	return &Service{
		commands:  commands,
		presence:  presence,
		publisher: publisher,
		locks:     newKeyedMutex(),
		now:       time.Now,
		logger:    logger.With().Str("service", "scheduler").Logger(),
	}
}

// ScheduleNext sends the oldest pending command of the vehicle's running
// campaign if it has not been sent yet. It returns the sent command or nil.
func (s *Service) ScheduleNext(ctx context.Context, vehicleID string) (*command.Command, error) {
	unlock := s.locks.Lock(vehicleID)
	defer unlock()
	return s.scheduleNext(ctx, vehicleID)
}

func (s *Service) scheduleNext(ctx context.Context, vehicleID string) (*command.Command, error) {
	online, err := s.presence.IsOnline(ctx, vehicleID)
	if err != nil || !online {
		return nil, err
	}
	running, err := s.presence.RunningCampaign(ctx, vehicleID)
	if err != nil || running == nil {
		return nil, err
	}

	next, err := s.currentOrNext(ctx, vehicleID, &running.ID, command.PendingStates)
	if err != nil {
		return nil, err
	}
	if next == nil || next.State != command.StateCreated {
		return nil, nil
	}

	s.logger.Info().
		Str("vehicle_id", vehicleID).
		Str("campaign_id", running.ID.String()).
		Str("command_id", next.ID.String()).
		Str("type", string(next.Type)).
		Msg("scheduling next command")

	if err := s.publisher.Publish(ctx, next); err != nil {
		return nil, fmt.Errorf("publish next command: %w", err)
	}
	return next, nil
}

// SaveAndSchedule persists cmd and re-evaluates the vehicle's queue. With
// override set the command is pushed immediately when the vehicle is online,
// regardless of queue order.
func (s *Service) SaveAndSchedule(ctx context.Context, cmd *command.Command, override bool) (*command.Command, error) {
	unlock := s.locks.Lock(cmd.VehicleID)
	defer unlock()
	return s.saveAndSchedule(ctx, cmd, override)
}

func (s *Service) saveAndSchedule(ctx context.Context, cmd *command.Command, override bool) (*command.Command, error) {
	if err := s.commands.Save(ctx, cmd); err != nil {
		return nil, fmt.Errorf("save command: %w", err)
	}

	if override {
		online, err := s.presence.IsOnline(ctx, cmd.VehicleID)
		if err != nil {
			return nil, err
		}
		if online {
			s.logger.Info().
				Str("vehicle_id", cmd.VehicleID).
				Str("command_id", cmd.ID.String()).
				Str("type", string(cmd.Type)).
				Msg("scheduling command with override")
			if err := s.publisher.Publish(ctx, cmd); err != nil {
				return nil, fmt.Errorf("publish command: %w", err)
			}
		}
	}

	if err := s.maybeResume(ctx, cmd); err != nil {
		return nil, err
	}
	if _, err := s.scheduleNext(ctx, cmd.VehicleID); err != nil {
		return nil, err
	}

	saved, err := s.commands.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return cmd, nil
	}
	return saved, nil
}

// maybeResume queues a RESUME_CAMPAIGN once the last detour of a campaign
// is closed.
func (s *Service) maybeResume(ctx context.Context, prev *command.Command) error {
	if prev.Type != command.TypeGoTo || !prev.IsClosed() {
		return nil
	}
	campaignID := prev.CampaignID
	others, err := s.commands.List(ctx, command.Filter{
		VehicleID:  prev.VehicleID,
		CampaignID: &campaignID,
		Types:      []command.Type{command.TypeGoTo},
		States:     command.InFlightStates,
	}, command.OldestFirst, 1)
	if err != nil {
		return fmt.Errorf("look up remaining detours: %w", err)
	}
	if len(others) > 0 {
		return nil
	}

	resume := command.New(prev.VehicleID, prev.CampaignID, command.TypeResumeCampaign, command.Payload{})
	if err := s.commands.Save(ctx, resume); err != nil {
		return fmt.Errorf("save resume command: %w", err)
	}
	s.logger.Info().
		Str("vehicle_id", prev.VehicleID).
		Str("campaign_id", prev.CampaignID.String()).
		Str("command_id", resume.ID.String()).
		Msg("queued resume command")
	return nil
}

// CancelPending aborts the vehicle's in-flight commands. The current command
// is re-published so the vehicle receives an explicit cancel; the rest are
// aborted silently. A nil campaignID cancels across all campaigns.
func (s *Service) CancelPending(ctx context.Context, vehicleID string, campaignID *uuid.UUID) error {
	unlock := s.locks.Lock(vehicleID)
	defer unlock()

	now := s.now()
	current, err := s.current(ctx, vehicleID)
	if err != nil {
		return err
	}
	if current != nil && (campaignID == nil || current.CampaignID == *campaignID) {
		if err := current.Abort(now); err != nil {
			return err
		}
		s.logger.Info().
			Str("vehicle_id", vehicleID).
			Str("command_id", current.ID.String()).
			Str("type", string(current.Type)).
			Msg("aborting current command")
		if err := s.publisher.Publish(ctx, current); err != nil {
			return fmt.Errorf("publish aborted command: %w", err)
		}
	}

	pending, err := s.commands.List(ctx, command.Filter{
		VehicleID:  vehicleID,
		CampaignID: campaignID,
		States:     command.PendingStates,
	}, command.OldestFirst, 0)
	if err != nil {
		return fmt.Errorf("load pending commands: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	for _, cmd := range pending {
		if err := cmd.Abort(now); err != nil {
			return err
		}
	}
	if err := s.commands.SaveAll(ctx, pending); err != nil {
		return fmt.Errorf("abort pending commands: %w", err)
	}
	s.logger.Info().
		Str("vehicle_id", vehicleID).
		Int("count", len(pending)).
		Msg("aborted pending commands")
	return nil
}

// current returns the vehicle's in-flight command, preferring its running
// campaign over any other.
func (s *Service) current(ctx context.Context, vehicleID string) (*command.Command, error) {
	running, err := s.presence.RunningCampaign(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		cmd, err := s.currentOrNext(ctx, vehicleID, &running.ID, command.InFlightStates)
		if err != nil || cmd != nil {
			return cmd, err
		}
	}
	return s.currentOrNext(ctx, vehicleID, nil, command.InFlightStates)
}

func (s *Service) currentOrNext(ctx context.Context, vehicleID string, campaignID *uuid.UUID, states []command.State) (*command.Command, error) {
	cmd, err := command.First(ctx, s.commands, command.Filter{
		VehicleID:  vehicleID,
		CampaignID: campaignID,
		States:     states,
	}, command.OldestFirst)
	if err != nil {
		return nil, fmt.Errorf("look up next command: %w", err)
	}
	return cmd, nil
}
