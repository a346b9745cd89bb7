package position

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/boltdb"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

func TestService_Post(t *testing.T) {
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	trigger := &countingTrigger{}
	updates := stream.NewUpdateStream(stream.Options{}, metrics.New(), zerolog.Nop())
	svc := NewService(store.Positions(), store.Campaigns(), store.Outbox(), trigger, updates, zerolog.Nop())

	c := campaign.New("survey", "site-1", []campaign.Configuration{{ClientID: "c", EndpointID: "e", VehicleID: "agv-1"}})
	require.NoError(t, store.Campaigns().Save(ctx, c))

	t.Run("stores queues and publishes", func(t *testing.T) {
		sub := updates.Subscribe("agv-1")
		defer updates.Unsubscribe(sub)
		<-sub.Messages // heartbeat

		points := []position.Point{{MeasuredAt: time.Now().UTC(), X: 1, Y: 2, Z: 0.5}}
		p, err := svc.Post(ctx, "agv-1", c.ID, points)
		require.NoError(t, err)

		stored, err := store.Positions().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "agv-1", stored.VehicleID)
		assert.Len(t, stored.Coordinates, 1)

		pending, err := store.Outbox().ListPending(ctx, outbox.KindPosition)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, p.ID, pending[0].RefID)
		assert.Equal(t, 1, trigger.n)

		select {
		case msg := <-sub.Messages:
			var u stream.Update
			require.NoError(t, json.Unmarshal(msg, &u))
			require.NotNil(t, u.Position)
			assert.Equal(t, p.ID, u.Position.ID)
		case <-time.After(time.Second):
			t.Fatal("no position update received")
		}
	})

	t.Run("rejects empty points and unknown campaign", func(t *testing.T) {
		_, err := svc.Post(ctx, "agv-1", uuid.New(), nil)
		var codes []apperror.Code
		for _, e := range apperror.Entries(err) {
			codes = append(codes, e.Code)
		}
		assert.Equal(t, []apperror.Code{apperror.CodeValidation, apperror.CodeNotFound}, codes)
	})
}
