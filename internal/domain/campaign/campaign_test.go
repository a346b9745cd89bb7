package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
)

func newWithVehicles(vehicles ...string) *Campaign {
	configs := make([]Configuration, 0, len(vehicles))
	for i, v := range vehicles {
		configs = append(configs, Configuration{
			ClientID:   "client-" + string(rune('a'+i)),
			EndpointID: "endpoint-" + string(rune('a'+i)),
			VehicleID:  v,
		})
	}
	return New("survey", "site-1", configs)
}

func TestCampaign_VehicleIDs(t *testing.T) {
	c := New("survey", "site-1", []Configuration{
		{ClientID: "c1", EndpointID: "e1", VehicleID: "agv-1"},
		{ClientID: "c2", EndpointID: "e2"},
		{ClientID: "c3", EndpointID: "e3", VehicleID: "agv-2"},
	})

	assert.Equal(t, []string{"agv-1", "agv-2"}, c.VehicleIDs())
	assert.True(t, c.HasVehicles())
	assert.True(t, c.HasVehicle("agv-2"))
	assert.False(t, c.HasVehicle("agv-3"))
	assert.False(t, New("empty", "site-1", nil).HasVehicles())
}

func TestCampaign_Fire(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("start sets started time", func(t *testing.T) {
		c := newWithVehicles("agv-1")
		require.NoError(t, c.Fire(ctx, EventStart, at))
		assert.Equal(t, StateRunning, c.State)
		assert.Equal(t, at, c.StartedAt)
		assert.Equal(t, at, c.UpdatedAt)
		assert.Nil(t, c.StoppedAt)
	})

	t.Run("completion with vehicles goes through pending", func(t *testing.T) {
		c := newWithVehicles("agv-1")
		require.NoError(t, c.Fire(ctx, EventStart, at))

		event, err := c.EventFor(StateCompleted)
		require.NoError(t, err)
		assert.Equal(t, EventRequestCompletion, event)

		require.NoError(t, c.Fire(ctx, event, at.Add(time.Minute)))
		assert.Equal(t, StateCompletePending, c.State)
		assert.Nil(t, c.StoppedAt)

		require.NoError(t, c.Fire(ctx, EventFinalize, at.Add(2*time.Minute)))
		assert.Equal(t, StateCompleted, c.State)
		require.NotNil(t, c.StoppedAt)
		assert.Equal(t, at.Add(2*time.Minute), *c.StoppedAt)
	})

	t.Run("completion without vehicles is immediate", func(t *testing.T) {
		c := New("empty", "site-1", nil)
		event, err := c.EventFor(StateCompleted)
		require.NoError(t, err)
		assert.Equal(t, EventComplete, event)
		require.NoError(t, c.Fire(ctx, event, at))
		assert.Equal(t, StateCompleted, c.State)
	})

	t.Run("abort stops the campaign", func(t *testing.T) {
		c := newWithVehicles("agv-1")
		require.NoError(t, c.Fire(ctx, EventAbort, at))
		assert.Equal(t, StateAborted, c.State)
		require.NotNil(t, c.StoppedAt)
	})

	t.Run("illegal event leaves state", func(t *testing.T) {
		c := newWithVehicles("agv-1")
		require.NoError(t, c.Fire(ctx, EventAbort, at))

		err := c.Fire(ctx, EventStart, at)
		require.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, apperror.CodeInvalidOperation, apperror.CodeOf(err))
		assert.Equal(t, StateAborted, c.State)
	})

	t.Run("unknown event", func(t *testing.T) {
		c := newWithVehicles("agv-1")
		require.ErrorIs(t, c.Fire(ctx, "explode", at), ErrInvalidTransition)
	})
}

func TestCampaign_EventForRejectsCreatedAndPending(t *testing.T) {
	c := newWithVehicles("agv-1")
	for _, target := range []State{StateCreated, StateCompletePending} {
		_, err := c.EventFor(target)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestCampaign_Can(t *testing.T) {
	c := newWithVehicles("agv-1")
	assert.True(t, c.Can(EventStart))
	assert.False(t, c.Can(EventFinalize))
}

func TestCampaign_ReadyToFinalize(t *testing.T) {
	c := newWithVehicles("agv-1", "agv-2")
	assert.False(t, c.ReadyToFinalize("agv-1"))

	c.State = StateCompletePending
	assert.True(t, c.ReadyToFinalize("agv-1"))
	assert.True(t, c.ReadyToFinalize("agv-2"))
	assert.False(t, c.ReadyToFinalize("agv-3"))
}

func TestFilter_Match(t *testing.T) {
	c := New("survey", "site-1", []Configuration{
		{ClientID: "c1", EndpointID: "e1", VehicleID: "agv-1"},
		{ClientID: "c2", EndpointID: "e2", VehicleID: "agv-2"},
	})
	c.State = StateRunning

	assert.True(t, Filter{}.Match(c))
	assert.True(t, Filter{States: []State{StateRunning}, VehicleID: "agv-1"}.Match(c))
	assert.True(t, Filter{ClientID: "c2", VehicleID: "agv-2"}.Match(c))
	assert.False(t, Filter{ClientID: "c1", VehicleID: "agv-2"}.Match(c))
	assert.False(t, Filter{EndpointID: "e3"}.Match(c))
	assert.False(t, Filter{States: []State{StateCreated}}.Match(c))
}
