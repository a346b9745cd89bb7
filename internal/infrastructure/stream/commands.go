package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
)

// CommandStream pushes commands to the vehicles they address.
type CommandStream struct {
	hub      *Hub[*command.Command]
	commands command.Repository
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   zerolog.Logger

	// locks holds one *sync.Mutex per vehicle so a resend snapshot and a
	// publish for the same vehicle never interleave.
	locks sync.Map
}

func NewCommandStream(opts Options, commands command.Repository, m *metrics.Metrics, logger zerolog.Logger) *CommandStream {
	if opts.Name == "" {
		opts.Name = "commands"
	}
	return &CommandStream{
		hub:      NewHub[*command.Command](opts, m, logger),
		commands: commands,
		metrics:  m,
		now:      time.Now,
		logger:   logger.With().Str("service", "command_stream").Logger(),
	}
}

// Hub exposes the underlying fan-out for lifecycle management.
func (s *CommandStream) Hub() *Hub[*command.Command] {
	return s.hub
}

// Publish records the delivery on cmd, persists it and forwards it to every
// subscription of its vehicle.
func (s *CommandStream) Publish(ctx context.Context, cmd *command.Command) error {
	unlock := s.lock(cmd.VehicleID)
	defer unlock()

	if err := s.stamp(ctx, cmd); err != nil {
		return err
	}
	n, err := s.hub.Publish(cmd.VehicleID, cmd)
	if err != nil {
		return fmt.Errorf("publish command %s: %w", cmd.ID, err)
	}
	s.metrics.CommandDispatched(string(cmd.Type))
	s.logger.Info().
		Str("vehicle_id", cmd.VehicleID).
		Str("command_id", cmd.ID.String()).
		Str("type", string(cmd.Type)).
		Str("state", string(cmd.State)).
		Int("subscriptions", n).
		Msg("command published")
	return nil
}

func (s *CommandStream) stamp(ctx context.Context, cmd *command.Command) error {
	cmd.MarkSent(s.now())
	if err := s.commands.Save(ctx, cmd); err != nil {
		return fmt.Errorf("save command %s: %w", cmd.ID, err)
	}
	return nil
}

func (s *CommandStream) lock(vehicleID string) func() {
	m, _ := s.locks.LoadOrStore(vehicleID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Subscribe opens a push channel for vehicleID. Besides the heartbeat, the
// vehicle's most recent delivered in-flight command is resent to the new
// subscription only, as stored and without touching the repository.
func (s *CommandStream) Subscribe(ctx context.Context, vehicleID string) (*Subscription, error) {
	unlock := s.lock(vehicleID)
	defer unlock()

	sub := s.hub.Subscribe(vehicleID)

	current, err := command.First(ctx, s.commands, command.Filter{
		VehicleID: vehicleID,
		States:    command.InFlightStates,
		SentOnly:  true,
	}, command.NewestFirst)
	if err != nil {
		s.hub.Unsubscribe(sub)
		return nil, fmt.Errorf("load current command: %w", err)
	}
	if current == nil {
		return sub, nil
	}

	if _, err := s.hub.Send(sub, current); err != nil {
		s.hub.Unsubscribe(sub)
		return nil, err
	}
	s.logger.Debug().
		Str("vehicle_id", vehicleID).
		Str("command_id", current.ID.String()).
		Msg("resent current command")
	return sub, nil
}

func (s *CommandStream) Unsubscribe(sub *Subscription) {
	s.hub.Unsubscribe(sub)
}

// Close completes every subscription of vehicleID.
func (s *CommandStream) Close(vehicleID string) {
	s.hub.Close(vehicleID)
}
