package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
)

// Sender delivers a change to the external system.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) error
}

// Loader resolves the object an outbox message refers to. It returns
// found=false when the object no longer exists.
type Loader[T any] func(ctx context.Context, id uuid.UUID) (obj T, found bool, err error)

var errReferenceMissing = errors.New("referenced object not found")

// Lane pushes queued messages of one kind. The hooks default to JSON
// serialization, deleting delivered messages and recording failures on the
// message; callers may replace them.
type Lane[T any] struct {
	Kind      outbox.Kind
	Path      string
	Serialize func(T) (json.RawMessage, error)
	OnSuccess func(ctx context.Context, m *outbox.Message) error
	OnFailure func(ctx context.Context, m *outbox.Message, cause error) error

	load       Loader[T]
	repo       outbox.Repository
	sender     Sender
	maxBackoff time.Duration
	now        func() time.Time
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// LaneOptions are shared by every lane of a pusher.
type LaneOptions struct {
	MaxBackoff time.Duration
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

func NewLane[T any](kind outbox.Kind, path string, repo outbox.Repository, sender Sender, load Loader[T], opts LaneOptions) *Lane[T] {
	l := &Lane[T]{
		Kind:       kind,
		Path:       path,
		load:       load,
		repo:       repo,
		sender:     sender,
		maxBackoff: opts.MaxBackoff,
		now:        time.Now,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("lane", string(kind)).Logger(),
	}
	l.Serialize = func(obj T) (json.RawMessage, error) {
		return json.Marshal(obj)
	}
	l.OnSuccess = func(ctx context.Context, m *outbox.Message) error {
		return l.repo.Delete(ctx, m.ID)
	}
	l.OnFailure = func(ctx context.Context, m *outbox.Message, cause error) error {
		m.RecordFailure(l.now(), cause)
		return l.repo.Update(ctx, m)
	}
	return l
}

// Flush attempts every due message oldest first. Failures are recorded per
// message and never stop the batch.
func (l *Lane[T]) Flush(ctx context.Context) error {
	messages, err := l.repo.ListPending(ctx, l.Kind)
	if err != nil {
		return fmt.Errorf("list %s messages: %w", l.Kind, err)
	}

	now := l.now()
	remaining := 0
	for _, m := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.Due(now, l.maxBackoff) {
			remaining++
			continue
		}
		if err := l.deliver(ctx, m); err != nil {
			remaining++
			l.metrics.OutboxDelivery(string(l.Kind), false)
			l.logger.Error().Err(err).
				Str("message_id", m.ID.String()).
				Str("ref_id", m.RefID.String()).
				Int("attempts", len(m.Errors)+1).
				Msg("outbox delivery failed")
			if hookErr := l.OnFailure(ctx, m, err); hookErr != nil {
				l.logger.Error().Err(hookErr).Str("message_id", m.ID.String()).Msg("failed to record delivery failure")
			}
			continue
		}
		l.metrics.OutboxDelivery(string(l.Kind), true)
		l.logger.Info().
			Str("message_id", m.ID.String()).
			Str("ref_id", m.RefID.String()).
			Str("method", string(m.Method)).
			Msg("outbox message delivered")
		if err := l.OnSuccess(ctx, m); err != nil {
			remaining++
			l.logger.Error().Err(err).Str("message_id", m.ID.String()).Msg("failed to settle delivered message")
		}
	}
	l.metrics.SetOutboxPending(string(l.Kind), remaining)
	return nil
}

func (l *Lane[T]) deliver(ctx context.Context, m *outbox.Message) error {
	obj, found, err := l.load(ctx, m.RefID)
	if err != nil {
		return err
	}
	if !found {
		return errReferenceMissing
	}
	body, err := l.Serialize(obj)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	return l.sender.Send(ctx, string(m.Method), l.Path, body)
}
