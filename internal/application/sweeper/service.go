package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
)

// DefaultMaxAge is how long a command may stay open.
const DefaultMaxAge = 24 * time.Hour

// Service times out commands vehicles never settled. Vehicles are not
// notified.
type Service struct {
	commands command.Repository
	maxAge   time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(commands command.Repository, maxAge time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{
		commands: commands,
		maxAge:   maxAge,
		now:      time.Now,
		metrics:  m,
		logger:   logger.With().Str("service", "sweeper").Logger(),
	}
}

// Sweep moves every open command created before now-maxAge to TIMEOUT and
// returns how many were changed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.maxAge)
	stale, err := s.commands.List(ctx, command.Filter{
		States:        command.OpenStates,
		CreatedBefore: &cutoff,
	}, command.OldestFirst, 0)
	if err != nil {
		return 0, fmt.Errorf("list stale commands: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for _, cmd := range stale {
		if err := cmd.Expire(now); err != nil {
			return 0, err
		}
	}
	if err := s.commands.SaveAll(ctx, stale); err != nil {
		return 0, fmt.Errorf("save timed out commands: %w", err)
	}
	s.metrics.CommandsTimedOut(len(stale))
	s.logger.Info().Int("count", len(stale)).Msg("timed out stale commands")
	return len(stale), nil
}
