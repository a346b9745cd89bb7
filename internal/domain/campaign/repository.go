package campaign

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows campaign searches. Zero fields are ignored.
type Filter struct {
	States     []State
	VehicleID  string
	ClientID   string
	EndpointID string
}

// Match reports whether c satisfies the filter.
func (f Filter) Match(c *Campaign) bool {
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if s == c.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.VehicleID == "" && f.ClientID == "" && f.EndpointID == "" {
		return true
	}
	for _, cfg := range c.Configurations {
		if (f.VehicleID == "" || cfg.VehicleID == f.VehicleID) &&
			(f.ClientID == "" || cfg.ClientID == f.ClientID) &&
			(f.EndpointID == "" || cfg.EndpointID == f.EndpointID) {
			return true
		}
	}
	return false
}

// Repository defines campaign persistence. List returns newest first.
type Repository interface {
	Save(ctx context.Context, c *Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(ctx context.Context, filter Filter, limit int) ([]*Campaign, error)
}
