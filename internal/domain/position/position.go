package position

import (
	"time"

	"github.com/google/uuid"
)

// Point is a pose sampled by a vehicle.
type Point struct {
	MeasuredAt time.Time `json:"measuredAt"`
	X          float32   `json:"x"`
	Y          float32   `json:"y"`
	Z          float32   `json:"z"`
	RotationX  *float32  `json:"rotationX,omitempty"`
	RotationY  *float32  `json:"rotationY,omitempty"`
	RotationZ  *float32  `json:"rotationZ,omitempty"`
}

// Position is a batch of points reported by one vehicle for one campaign.
type Position struct {
	ID          uuid.UUID `json:"id"`
	VehicleID   string    `json:"vehicleId"`
	CampaignID  uuid.UUID `json:"campaignId"`
	Coordinates []Point   `json:"coordinates"`
	CreatedAt   time.Time `json:"createdAt"`
}

func New(vehicleID string, campaignID uuid.UUID, points []Point) *Position {
	return &Position{
		ID:          uuid.New(),
		VehicleID:   vehicleID,
		CampaignID:  campaignID,
		Coordinates: points,
		CreatedAt:   time.Now().UTC(),
	}
}
