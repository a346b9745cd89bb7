package command

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
)

// Type is the directive carried by a command.
type Type string

const (
	TypeStartCampaign    Type = "START_CAMPAIGN"
	TypeCompleteCampaign Type = "COMPLETE_CAMPAIGN"
	TypeGoTo             Type = "GO_TO"
	TypeResumeCampaign   Type = "RESUME_CAMPAIGN"
	TypeAbortCampaign    Type = "ABORT_CAMPAIGN"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStartCampaign, TypeCompleteCampaign, TypeGoTo, TypeResumeCampaign, TypeAbortCampaign:
		return true
	}
	return false
}

// State represents command lifecycle state.
type State string

const (
	StateCreated      State = "CREATED"
	StateSent         State = "SENT"
	StateAcknowledged State = "ACKNOWLEDGED"
	StateCompleted    State = "COMPLETED"
	StateRejected     State = "REJECTED"
	StateAborted      State = "ABORTED"
	StateObsolete     State = "OBSOLETE"
	StateTimeout      State = "TIMEOUT"
)

var (
	PendingStates = []State{StateCreated, StateSent}
	OpenStates    = []State{StateSent, StateAcknowledged}
	// InFlightStates is the union of pending and open states.
	InFlightStates = []State{StateCreated, StateSent, StateAcknowledged}
	ClosedStates   = []State{StateAborted, StateCompleted, StateObsolete, StateTimeout, StateRejected}
)

var ErrInvalidTransition = apperror.New(apperror.CodeInvalidOperation, "invalid command state transition")

func (s State) Valid() bool {
	switch s {
	case StateCreated, StateSent, StateAcknowledged, StateCompleted,
		StateRejected, StateAborted, StateObsolete, StateTimeout:
		return true
	}
	return false
}

func (s State) IsPending() bool { return s == StateCreated || s == StateSent }

func (s State) IsOpen() bool { return s == StateSent || s == StateAcknowledged }

func (s State) IsClosed() bool { return !s.IsPending() && !s.IsOpen() }

// Coordinates is a target position in the campaign frame.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Payload carries the command target and/or an operator note.
type Payload struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Command is a directive issued to one vehicle within one campaign.
type Command struct {
	ID           uuid.UUID  `json:"id"`
	VehicleID    string     `json:"vehicleId"`
	CampaignID   uuid.UUID  `json:"campaignId"`
	Type         Type       `json:"type"`
	State        State      `json:"state"`
	Payload      Payload    `json:"payload"`
	MeasuredAt   time.Time  `json:"measuredAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	LatestSendAt *time.Time `json:"latestSendAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// New creates a command in state CREATED.
func New(vehicleID string, campaignID uuid.UUID, typ Type, payload Payload) *Command {
	now := time.Now().UTC()
	return &Command{
		ID:         uuid.New(),
		VehicleID:  vehicleID,
		CampaignID: campaignID,
		Type:       typ,
		State:      StateCreated,
		Payload:    payload,
		MeasuredAt: now,
		CreatedAt:  now,
	}
}

func (c *Command) IsPending() bool { return c.State.IsPending() }

func (c *Command) IsOpen() bool { return c.State.IsOpen() }

func (c *Command) IsClosed() bool { return c.State.IsClosed() }

// CanTransitionTo validates command state transition.
// Timeouts are applied only by the sweeper through Expire.
func (c *Command) CanTransitionTo(target State) bool {
	transitions := map[State][]State{
		StateCreated:      {StateSent, StateAborted},
		StateSent:         {StateAcknowledged, StateRejected, StateAborted, StateTimeout},
		StateAcknowledged: {StateCompleted, StateRejected, StateAborted, StateTimeout},
	}
	for _, s := range transitions[c.State] {
		if s == target {
			return true
		}
	}
	return false
}

func (c *Command) transition(target State, at time.Time) error {
	if !c.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, target)
	}
	c.State = target
	c.touch(at)
	return nil
}

func (c *Command) touch(at time.Time) {
	t := at.UTC()
	c.UpdatedAt = &t
}

// MarkSent promotes a CREATED command and stamps the delivery time.
// Resending an already delivered command only refreshes LatestSendAt.
func (c *Command) MarkSent(at time.Time) {
	if c.State == StateCreated {
		c.State = StateSent
		c.touch(at)
	}
	t := at.UTC()
	c.LatestSendAt = &t
}

func (c *Command) Acknowledge(at time.Time) error { return c.transition(StateAcknowledged, at) }

func (c *Command) Complete(at time.Time) error { return c.transition(StateCompleted, at) }

func (c *Command) Reject(at time.Time) error { return c.transition(StateRejected, at) }

func (c *Command) Abort(at time.Time) error { return c.transition(StateAborted, at) }

// Expire moves an open command to TIMEOUT.
func (c *Command) Expire(at time.Time) error {
	if !c.IsOpen() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, StateTimeout)
	}
	return c.transition(StateTimeout, at)
}
