package measurement

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines measurement persistence.
type Repository interface {
	SaveAll(ctx context.Context, ms []*Measurement) error
	// LatestForCampaign returns the measurement with the highest
	// MeasurementID for the campaign, or nil.
	LatestForCampaign(ctx context.Context, campaignID uuid.UUID) (*Measurement, error)
	List(ctx context.Context, campaignID uuid.UUID, limit int) ([]*Measurement, error)
}
