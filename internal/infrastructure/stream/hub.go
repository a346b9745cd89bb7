package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultIdleTimeout       = 8 * time.Hour
	defaultBuffer            = 64
)

// Heartbeat is the first payload of every subscription and the periodic
// liveness check.
type Heartbeat struct {
	DateTime time.Time `json:"dateTime"`
}

// Subscription is one long-lived push channel registered under a key.
// Messages carries serialized JSON documents; it is never closed, readers
// stop on Done.
type Subscription struct {
	ID        string
	Key       string
	Messages  chan []byte
	CreatedAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the hub drops the subscription.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

func (s *Subscription) trySend(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.Messages <- payload:
		return true
	default:
		return false
	}
}

// Options configure a Hub.
type Options struct {
	Name              string
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	Buffer            int
}

// Hub fans out values of type V to subscriptions grouped by key.
type Hub[V any] struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription

	opts    Options
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewHub[V any](opts Options, m *metrics.Metrics, logger zerolog.Logger) *Hub[V] {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	return &Hub[V]{
		subs:    make(map[string]map[string]*Subscription),
		opts:    opts,
		now:     time.Now,
		metrics: m,
		logger:  logger.With().Str("stream", opts.Name).Logger(),
	}
}

// Subscribe registers a new subscription under key and queues a heartbeat
// as its first message.
func (h *Hub[V]) Subscribe(key string) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		Key:       key,
		Messages:  make(chan []byte, h.opts.Buffer),
		CreatedAt: h.now(),
		done:      make(chan struct{}),
	}
	sub.trySend(h.heartbeat())

	h.mu.Lock()
	group, ok := h.subs[key]
	if !ok {
		group = make(map[string]*Subscription)
		h.subs[key] = group
	}
	group[sub.ID] = sub
	h.mu.Unlock()

	h.metrics.SubscriptionOpened(h.opts.Name)
	h.logger.Debug().Str("key", key).Str("subscription_id", sub.ID).Msg("subscription opened")
	return sub
}

// Unsubscribe removes sub. It is safe to call more than once.
func (h *Hub[V]) Unsubscribe(sub *Subscription) {
	h.remove(sub.Key, sub.ID)
}

func (h *Hub[V]) remove(key, id string) {
	h.mu.Lock()
	group := h.subs[key]
	sub, ok := group[id]
	if ok {
		delete(group, id)
		if len(group) == 0 {
			delete(h.subs, key)
		}
	}
	h.mu.Unlock()

	if ok && sub.close() {
		h.metrics.SubscriptionClosed(h.opts.Name)
		h.logger.Debug().Str("key", key).Str("subscription_id", id).Msg("subscription closed")
	}
}

// Publish forwards value to every subscription under key and returns the
// number of successful deliveries. Subscriptions that cannot accept the
// message are dropped; their siblings are unaffected.
func (h *Hub[V]) Publish(key string, value V) (int, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return h.publishRaw(key, payload), nil
}

// Send delivers value to a single subscription.
func (h *Hub[V]) Send(sub *Subscription, value V) (bool, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if !sub.trySend(payload) {
		h.remove(sub.Key, sub.ID)
		return false, nil
	}
	return true, nil
}

func (h *Hub[V]) publishRaw(key string, payload []byte) int {
	var failed []string
	delivered := 0

	h.mu.RLock()
	for id, sub := range h.subs[key] {
		if sub.trySend(payload) {
			delivered++
		} else {
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range failed {
		h.logger.Warn().Str("key", key).Str("subscription_id", id).Msg("dropping unresponsive subscription")
		h.remove(key, id)
	}
	return delivered
}

// Close completes and removes every subscription under key.
func (h *Hub[V]) Close(key string) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.subs[key]))
	for id := range h.subs[key] {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.remove(key, id)
	}
}

// CloseAll completes every subscription.
func (h *Hub[V]) CloseAll() {
	h.mu.RLock()
	keys := make([]string, 0, len(h.subs))
	for key := range h.subs {
		keys = append(keys, key)
	}
	h.mu.RUnlock()

	for _, key := range keys {
		h.Close(key)
	}
}

// Count returns the number of subscriptions under key.
func (h *Hub[V]) Count(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Start sends heartbeats on a fixed interval until ctx is cancelled, then
// closes all subscriptions.
func (h *Hub[V]) Start(ctx context.Context) {
	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			return
		case <-ticker.C:
			h.Beat()
		}
	}
}

// Beat sends a heartbeat to every subscription and drops the ones that
// outlived the idle timeout or can no longer accept messages.
func (h *Hub[V]) Beat() {
	now := h.now()
	payload := h.heartbeat()

	h.mu.RLock()
	keys := make([]string, 0, len(h.subs))
	var expired []*Subscription
	for key, group := range h.subs {
		keys = append(keys, key)
		for _, sub := range group {
			if now.Sub(sub.CreatedAt) >= h.opts.IdleTimeout {
				expired = append(expired, sub)
			}
		}
	}
	h.mu.RUnlock()

	for _, sub := range expired {
		h.remove(sub.Key, sub.ID)
	}
	for _, key := range keys {
		h.publishRaw(key, payload)
	}
}

func (h *Hub[V]) heartbeat() []byte {
	payload, _ := json.Marshal(Heartbeat{DateTime: h.now().UTC()})
	return payload
}
