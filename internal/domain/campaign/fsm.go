package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
)

const (
	EventStart             = "start"
	EventComplete          = "complete"
	EventRequestCompletion = "request_completion"
	EventFinalize          = "finalize"
	EventAbort             = "abort"
)

var ErrInvalidTransition = apperror.New(apperror.CodeInvalidOperation, "invalid campaign state transition")

var events = fsm.Events{
	{Name: EventStart, Src: []string{string(StateCreated)}, Dst: string(StateRunning)},
	{Name: EventComplete, Src: []string{string(StateCreated), string(StateRunning)}, Dst: string(StateCompleted)},
	{Name: EventRequestCompletion, Src: []string{string(StateCreated), string(StateRunning)}, Dst: string(StateCompletePending)},
	{Name: EventFinalize, Src: []string{string(StateCompletePending)}, Dst: string(StateCompleted)},
	{Name: EventAbort, Src: []string{string(StateCreated), string(StateRunning), string(StateCompletePending)}, Dst: string(StateAborted)},
}

func wrap(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// EventFor maps a requested target state to the machine event that reaches it.
// Completion of a campaign with vehicles goes through COMPLETE_PENDING.
func (c *Campaign) EventFor(target State) (string, error) {
	switch target {
	case StateRunning:
		return EventStart, nil
	case StateCompleted:
		if c.HasVehicles() {
			return EventRequestCompletion, nil
		}
		return EventComplete, nil
	case StateAborted:
		return EventAbort, nil
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, target)
}

// Fire applies event to the campaign at time at.
func (c *Campaign) Fire(ctx context.Context, event string, at time.Time) error {
	machine := fsm.NewFSM(string(c.State), events, fsm.Callbacks{
		"enter_state": wrap(func(_ context.Context, e *fsm.Event) error {
			c.State = State(e.Dst)
			c.UpdatedAt = at.UTC()
			return nil
		}),
		"enter_" + string(StateRunning): wrap(func(_ context.Context, _ *fsm.Event) error {
			c.StartedAt = at.UTC()
			return nil
		}),
		"enter_" + string(StateCompleted): wrap(c.stop(at)),
		"enter_" + string(StateAborted):   wrap(c.stop(at)),
	})
	if err := machine.Event(ctx, event); err != nil {
		var invalid fsm.InvalidEventError
		var unknown fsm.UnknownEventError
		if errors.As(err, &invalid) || errors.As(err, &unknown) {
			return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, c.State)
		}
		return err
	}
	return nil
}

func (c *Campaign) stop(at time.Time) func(context.Context, *fsm.Event) error {
	return func(context.Context, *fsm.Event) error {
		t := at.UTC()
		c.StoppedAt = &t
		return nil
	}
}

// Can reports whether event is legal from the current state.
func (c *Campaign) Can(event string) bool {
	return fsm.NewFSM(string(c.State), events, fsm.Callbacks{}).Can(event)
}
