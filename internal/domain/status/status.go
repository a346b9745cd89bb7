package status

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
)

// Type is the kind of vehicle report.
type Type string

const (
	TypeOnline             Type = "ONLINE"
	TypeAcknowledgeRequest Type = "ACKNOWLEDGE_REQUEST"
	TypeCompleteRequest    Type = "COMPLETE_REQUEST"
	TypeRejectRequest      Type = "REJECT_REQUEST"
	TypeError              Type = "ERROR"
	TypeShutdown           Type = "SHUTDOWN"
)

// PresenceTypes are the events that decide whether a vehicle is online.
var PresenceTypes = []Type{TypeOnline, TypeShutdown}

func (t Type) Valid() bool {
	switch t {
	case TypeOnline, TypeAcknowledgeRequest, TypeCompleteRequest, TypeRejectRequest, TypeError, TypeShutdown:
		return true
	}
	return false
}

// RequiresCommand reports whether the event must reference a command.
func (t Type) RequiresCommand() bool {
	return t == TypeAcknowledgeRequest || t == TypeCompleteRequest || t == TypeRejectRequest
}

// TargetState returns the command state an event moves its command to.
func (t Type) TargetState() (command.State, bool) {
	switch t {
	case TypeAcknowledgeRequest:
		return command.StateAcknowledged, true
	case TypeCompleteRequest:
		return command.StateCompleted, true
	case TypeRejectRequest:
		return command.StateRejected, true
	}
	return "", false
}

// Event is an immutable vehicle report.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	VehicleID  string     `json:"vehicleId"`
	Type       Type       `json:"eventType"`
	CommandID  *uuid.UUID `json:"commandId,omitempty"`
	MeasuredAt time.Time  `json:"measuredAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	Payload    string     `json:"payload,omitempty"`
}

// Apply moves cmd to the state implied by the event type.
func (e *Event) Apply(cmd *command.Command) error {
	at := e.CreatedAt
	switch e.Type {
	case TypeAcknowledgeRequest:
		return cmd.Acknowledge(at)
	case TypeCompleteRequest:
		return cmd.Complete(at)
	case TypeRejectRequest:
		return cmd.Reject(at)
	}
	return nil
}
