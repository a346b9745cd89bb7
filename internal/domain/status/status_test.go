package status

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
)

func TestType_RequiresCommand(t *testing.T) {
	tests := []struct {
		typ      Type
		requires bool
	}{
		{TypeOnline, false},
		{TypeAcknowledgeRequest, true},
		{TypeCompleteRequest, true},
		{TypeRejectRequest, true},
		{TypeError, false},
		{TypeShutdown, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.True(t, tt.typ.Valid())
			assert.Equal(t, tt.requires, tt.typ.RequiresCommand())
			_, ok := tt.typ.TargetState()
			assert.Equal(t, tt.requires, ok)
		})
	}
	assert.False(t, Type("REBOOT").Valid())
}

func TestEvent_Apply(t *testing.T) {
	cmd := command.New("agv-1", uuid.New(), command.TypeGoTo, command.Payload{})
	cmd.MarkSent(time.Now())

	ack := &Event{Type: TypeAcknowledgeRequest, CreatedAt: time.Now()}
	require.NoError(t, ack.Apply(cmd))
	assert.Equal(t, command.StateAcknowledged, cmd.State)

	again := &Event{Type: TypeAcknowledgeRequest, CreatedAt: time.Now()}
	require.ErrorIs(t, again.Apply(cmd), command.ErrInvalidTransition)
	assert.Equal(t, command.StateAcknowledged, cmd.State)

	done := &Event{Type: TypeCompleteRequest, CreatedAt: time.Now()}
	require.NoError(t, done.Apply(cmd))
	assert.Equal(t, command.StateCompleted, cmd.State)

	online := &Event{Type: TypeOnline}
	assert.NoError(t, online.Apply(cmd))
}

func TestFilter_Match(t *testing.T) {
	e := &Event{VehicleID: "agv-1", Type: TypeShutdown}
	assert.True(t, Filter{}.Match(e))
	assert.True(t, Filter{VehicleID: "agv-1", Types: PresenceTypes}.Match(e))
	assert.False(t, Filter{VehicleID: "agv-2"}.Match(e))
	assert.False(t, Filter{Types: []Type{TypeError}}.Match(e))
}
