package command

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
)

func TestNew(t *testing.T) {
	campaignID := uuid.New()
	cmd := New("agv-1", campaignID, TypeGoTo, Payload{Coordinates: &Coordinates{X: 1, Y: 2}})

	require.NotNil(t, cmd)
	assert.NotEqual(t, uuid.Nil, cmd.ID)
	assert.Equal(t, "agv-1", cmd.VehicleID)
	assert.Equal(t, campaignID, cmd.CampaignID)
	assert.Equal(t, StateCreated, cmd.State)
	assert.Nil(t, cmd.LatestSendAt)
	assert.False(t, cmd.CreatedAt.IsZero())
}

func TestStateGroups(t *testing.T) {
	tests := []struct {
		state   State
		pending bool
		open    bool
		closed  bool
	}{
		{StateCreated, true, false, false},
		{StateSent, true, true, false},
		{StateAcknowledged, false, true, false},
		{StateCompleted, false, false, true},
		{StateRejected, false, false, true},
		{StateAborted, false, false, true},
		{StateObsolete, false, false, true},
		{StateTimeout, false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.pending, tt.state.IsPending())
			assert.Equal(t, tt.open, tt.state.IsOpen())
			assert.Equal(t, tt.closed, tt.state.IsClosed())
		})
	}
}

func TestCommand_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{"created to sent", StateCreated, StateSent, true},
		{"created to aborted", StateCreated, StateAborted, true},
		{"created to acknowledged", StateCreated, StateAcknowledged, false},
		{"sent to acknowledged", StateSent, StateAcknowledged, true},
		{"sent to rejected", StateSent, StateRejected, true},
		{"sent to completed", StateSent, StateCompleted, false},
		{"acknowledged to completed", StateAcknowledged, StateCompleted, true},
		{"acknowledged to acknowledged", StateAcknowledged, StateAcknowledged, false},
		{"completed is terminal", StateCompleted, StateAborted, false},
		{"timeout is terminal", StateTimeout, StateSent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &Command{State: tt.from}
			assert.Equal(t, tt.expected, cmd.CanTransitionTo(tt.to))
		})
	}
}

func TestCommand_Lifecycle(t *testing.T) {
	cmd := New("agv-1", uuid.New(), TypeGoTo, Payload{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cmd.MarkSent(now)
	assert.Equal(t, StateSent, cmd.State)
	require.NotNil(t, cmd.LatestSendAt)
	assert.Equal(t, now, *cmd.LatestSendAt)

	require.NoError(t, cmd.Acknowledge(now.Add(time.Second)))
	assert.Equal(t, StateAcknowledged, cmd.State)

	require.NoError(t, cmd.Complete(now.Add(2*time.Second)))
	assert.Equal(t, StateCompleted, cmd.State)
	require.NotNil(t, cmd.UpdatedAt)
	assert.Equal(t, now.Add(2*time.Second), *cmd.UpdatedAt)
}

func TestCommand_MarkSentResend(t *testing.T) {
	cmd := New("agv-1", uuid.New(), TypeGoTo, Payload{})
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cmd.MarkSent(first)
	require.NoError(t, cmd.Acknowledge(first))

	cmd.MarkSent(first.Add(time.Minute))

	assert.Equal(t, StateAcknowledged, cmd.State)
	assert.Equal(t, first.Add(time.Minute), *cmd.LatestSendAt)
}

func TestCommand_InvalidTransitionLeavesState(t *testing.T) {
	cmd := New("agv-1", uuid.New(), TypeGoTo, Payload{})

	err := cmd.Acknowledge(time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, apperror.CodeInvalidOperation, apperror.CodeOf(err))
	assert.Equal(t, StateCreated, cmd.State)
	assert.Nil(t, cmd.UpdatedAt)
}

func TestCommand_Expire(t *testing.T) {
	t.Run("open command times out", func(t *testing.T) {
		cmd := &Command{State: StateAcknowledged}
		require.NoError(t, cmd.Expire(time.Now()))
		assert.Equal(t, StateTimeout, cmd.State)
	})

	t.Run("created command cannot time out", func(t *testing.T) {
		cmd := &Command{State: StateCreated}
		require.ErrorIs(t, cmd.Expire(time.Now()), ErrInvalidTransition)
		assert.Equal(t, StateCreated, cmd.State)
	})
}

func TestFilter_Match(t *testing.T) {
	campaignID := uuid.New()
	sentAt := time.Now()
	cmd := &Command{
		VehicleID:    "agv-1",
		CampaignID:   campaignID,
		Type:         TypeGoTo,
		State:        StateSent,
		CreatedAt:    sentAt.Add(-time.Hour),
		LatestSendAt: &sentAt,
	}
	other := uuid.New()

	assert.True(t, Filter{}.Match(cmd))
	assert.True(t, Filter{VehicleID: "agv-1", CampaignID: &campaignID, States: PendingStates, Types: []Type{TypeGoTo}, SentOnly: true}.Match(cmd))
	assert.False(t, Filter{VehicleID: "agv-2"}.Match(cmd))
	assert.False(t, Filter{CampaignID: &other}.Match(cmd))
	assert.False(t, Filter{States: ClosedStates}.Match(cmd))
	assert.False(t, Filter{Types: []Type{TypeResumeCampaign}}.Match(cmd))
	assert.True(t, Filter{CreatedBefore: &sentAt}.Match(cmd))

	cmd.LatestSendAt = nil
	assert.False(t, Filter{SentOnly: true}.Match(cmd))
}
