package measurement

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
)

// InvalidThreshold marks readings at or below this altitude as invalid.
const InvalidThreshold float32 = -100

// Measurement is a radio sample produced by the external backend.
// MeasurementID is the backend's monotonically increasing sequence per campaign.
type Measurement struct {
	ID            uuid.UUID       `json:"id"`
	MeasurementID int64           `json:"measurementId"`
	CampaignID    uuid.UUID       `json:"campaignId"`
	CreatedAt     time.Time       `json:"createdAt"`
	DataRate      *float32        `json:"dataRate,omitempty"`
	Latency       *float32        `json:"latency,omitempty"`
	Coordinates   *position.Point `json:"coordinates,omitempty"`
}

// Valid reports whether the reading may be shown to subscribers.
func (m *Measurement) Valid() bool {
	return m.Coordinates == nil || m.Coordinates.Z > InvalidThreshold
}
