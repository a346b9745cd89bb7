package stream

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
)

// Update is a live snapshot of something a vehicle reported or produced.
type Update struct {
	UpdatedAt    time.Time                  `json:"updatedAt"`
	Status       *status.Event              `json:"status,omitempty"`
	Position     *position.Position         `json:"position,omitempty"`
	Measurements []*measurement.Measurement `json:"measurements,omitempty"`
}

func StatusUpdate(e *status.Event) *Update {
	return &Update{UpdatedAt: time.Now().UTC(), Status: e}
}

func PositionUpdate(p *position.Position) *Update {
	return &Update{UpdatedAt: time.Now().UTC(), Position: p}
}

func MeasurementsUpdate(ms []*measurement.Measurement) *Update {
	return &Update{UpdatedAt: time.Now().UTC(), Measurements: ms}
}

// UpdateStream fans out updates keyed by vehicle.
type UpdateStream = Hub[*Update]

func NewUpdateStream(opts Options, m *metrics.Metrics, logger zerolog.Logger) *UpdateStream {
	if opts.Name == "" {
		opts.Name = "updates"
	}
	return NewHub[*Update](opts, m, logger)
}
