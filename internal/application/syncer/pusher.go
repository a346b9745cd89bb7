package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Flusher drains one outbox lane.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Pusher drains the outbox on a fixed schedule and whenever triggered.
// Runs never overlap; a flush requested while one is running is skipped.
type Pusher struct {
	mu     sync.Mutex
	lanes  []Flusher
	kick   chan struct{}
	logger zerolog.Logger
}

func NewPusher(logger zerolog.Logger, lanes ...Flusher) *Pusher {
	return &Pusher{
		lanes:  lanes,
		kick:   make(chan struct{}, 1),
		logger: logger.With().Str("service", "outbox_pusher").Logger(),
	}
}

// Trigger requests an asynchronous flush.
func (p *Pusher) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Flush drains every lane once. It returns false without doing anything
// when another flush is in progress.
func (p *Pusher) Flush(ctx context.Context) bool {
	if !p.mu.TryLock() {
		p.logger.Debug().Msg("outbox flush already running, skipping")
		return false
	}
	defer p.mu.Unlock()

	p.logger.Debug().Msg("outbox flush started")
	for _, lane := range p.lanes {
		if err := lane.Flush(ctx); err != nil {
			p.logger.Error().Err(err).Msg("outbox lane flush failed")
		}
	}
	p.logger.Debug().Msg("outbox flush finished")
	return true
}

// Run flushes every interval and on Trigger until ctx is done.
func (p *Pusher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Flush(ctx)
		case <-p.kick:
			p.Flush(ctx)
		}
	}
}
