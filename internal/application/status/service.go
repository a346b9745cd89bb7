package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

// Scheduler is the part of the command scheduler ingestion drives.
type Scheduler interface {
	ScheduleNext(ctx context.Context, vehicleID string) (*command.Command, error)
	SaveAndSchedule(ctx context.Context, cmd *command.Command, override bool) (*command.Command, error)
}

// Finalizer completes campaigns once their vehicles confirm.
type Finalizer interface {
	ConfirmCompletion(ctx context.Context, c *campaign.Campaign, vehicleID string) (*campaign.Campaign, error)
}

// UpdatePublisher forwards live updates to a vehicle's observers.
type UpdatePublisher interface {
	Publish(key string, value *stream.Update) (int, error)
}

// Report is an inbound status event.
type Report struct {
	Type       status.Type
	CommandID  *uuid.UUID
	MeasuredAt *time.Time
	Payload    string
}

// Service ingests vehicle status reports.
type Service struct {
	statuses  status.Repository
	commands  command.Repository
	campaigns campaign.Repository
	scheduler Scheduler
	finalizer Finalizer
	updates   UpdatePublisher
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(
	statuses status.Repository,
	commands command.Repository,
	campaigns campaign.Repository,
	scheduler Scheduler,
	finalizer Finalizer,
	updates UpdatePublisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		statuses:  statuses,
		commands:  commands,
		campaigns: campaigns,
		scheduler: scheduler,
		finalizer: finalizer,
		updates:   updates,
		now:       time.Now,
		logger:    logger.With().Str("service", "status").Logger(),
	}
}

// Ingest validates and stores a report, then applies it to the referenced
// command. An invalid report changes nothing and returns every violation.
func (s *Service) Ingest(ctx context.Context, vehicleID string, report Report) (*status.Event, error) {
	cmd, camp, err := s.validate(ctx, vehicleID, report)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event := &status.Event{
		ID:         uuid.New(),
		VehicleID:  vehicleID,
		Type:       report.Type,
		CommandID:  report.CommandID,
		MeasuredAt: now,
		CreatedAt:  now,
		Payload:    report.Payload,
	}
	if report.MeasuredAt != nil {
		event.MeasuredAt = report.MeasuredAt.UTC()
	}
	if err := s.statuses.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("save status event: %w", err)
	}

	switch {
	case event.Type == status.TypeOnline:
		s.logger.Info().Str("vehicle_id", vehicleID).Msg("vehicle online")
		if _, err := s.scheduler.ScheduleNext(ctx, vehicleID); err != nil {
			return nil, err
		}
	case event.Type == status.TypeShutdown:
		s.logger.Info().Str("vehicle_id", vehicleID).Msg("vehicle shutting down")
	case cmd != nil && event.Type.RequiresCommand():
		if err := s.apply(ctx, event, cmd, camp); err != nil {
			return nil, err
		}
	}

	if _, err := s.updates.Publish(vehicleID, stream.StatusUpdate(event)); err != nil {
		s.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("failed to publish status update")
	}
	return event, nil
}

func (s *Service) apply(ctx context.Context, event *status.Event, cmd *command.Command, camp *campaign.Campaign) error {
	s.logger.Info().
		Str("vehicle_id", event.VehicleID).
		Str("command_id", cmd.ID.String()).
		Str("event_type", string(event.Type)).
		Str("command_type", string(cmd.Type)).
		Msg("applying status to command")

	if err := event.Apply(cmd); err != nil {
		return err
	}

	if event.Type == status.TypeCompleteRequest && camp != nil && camp.ReadyToFinalize(event.VehicleID) {
		if _, err := s.finalizer.ConfirmCompletion(ctx, camp, event.VehicleID); err != nil {
			return err
		}
	}

	if _, err := s.scheduler.SaveAndSchedule(ctx, cmd, false); err != nil {
		return err
	}
	return nil
}

func (s *Service) validate(ctx context.Context, vehicleID string, report Report) (*command.Command, *campaign.Campaign, error) {
	var v apperror.Validation

	if !report.Type.Valid() {
		v.Add(apperror.CodeValidation, fmt.Sprintf("unknown event type %q", report.Type))
		return nil, nil, v.Err()
	}

	var cmd *command.Command
	if report.CommandID != nil {
		found, err := s.commands.GetByID(ctx, *report.CommandID)
		if err != nil {
			return nil, nil, err
		}
		if found == nil {
			v.Add(apperror.CodeNotFound, "command reference not found")
			return nil, nil, v.Err()
		}
		cmd = found
	}

	if report.Type.RequiresCommand() {
		if cmd == nil {
			v.Add(apperror.CodeValidation, "command reference is required for given status event type")
			return nil, nil, v.Err()
		}
		validateCommand(&v, vehicleID, report.Type, cmd)
	}

	var camp *campaign.Campaign
	if cmd != nil {
		found, err := s.campaigns.GetByID(ctx, cmd.CampaignID)
		if err != nil {
			return nil, nil, err
		}
		if found == nil {
			v.Add(apperror.CodeNotFound, "campaign reference not found")
		} else {
			camp = found
			if !acceptsReports(camp, cmd) {
				v.Add(apperror.CodeInvalidOperation, "campaign must be active")
			}
		}
	}

	if err := v.Err(); err != nil {
		return nil, nil, err
	}
	return cmd, camp, nil
}

func validateCommand(v *apperror.Validation, vehicleID string, typ status.Type, cmd *command.Command) {
	if cmd.VehicleID != vehicleID {
		v.Add(apperror.CodeValidation, "command does not belong to vehicle")
	}
	if cmd.IsClosed() {
		v.Add(apperror.CodeInvalidOperation, "referenced command is already closed")
	}
	switch typ {
	case status.TypeAcknowledgeRequest:
		if cmd.State == command.StateAcknowledged {
			v.Add(apperror.CodeInvalidOperation, "command has already been acknowledged")
		} else if cmd.State != command.StateSent {
			v.Add(apperror.CodeInvalidOperation, "only sent commands can be acknowledged")
		}
	case status.TypeCompleteRequest:
		if cmd.State != command.StateAcknowledged {
			v.Add(apperror.CodeInvalidOperation, "command must be acknowledged first")
		}
	case status.TypeRejectRequest:
		if !cmd.IsOpen() {
			v.Add(apperror.CodeInvalidOperation, "only open commands can be rejected")
		}
	}
}

// acceptsReports allows reports on running campaigns, and on finished
// campaigns only for the command that finished them.
func acceptsReports(c *campaign.Campaign, cmd *command.Command) bool {
	switch c.State {
	case campaign.StateRunning:
		return true
	case campaign.StateCompletePending:
		return cmd.Type == command.TypeCompleteCampaign
	case campaign.StateAborted:
		return cmd.Type == command.TypeAbortCampaign
	}
	return false
}

// List returns the vehicle's latest status events.
func (s *Service) List(ctx context.Context, vehicleID string, limit int) ([]*status.Event, error) {
	return s.statuses.List(ctx, status.Filter{VehicleID: vehicleID}, limit)
}
