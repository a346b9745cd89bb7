package status

import "context"

// Filter narrows status event searches. Zero fields are ignored.
type Filter struct {
	VehicleID string
	Types     []Type
}

func (f Filter) Match(e *Event) bool {
	if f.VehicleID != "" && e.VehicleID != f.VehicleID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Repository defines status event persistence. List returns newest first
// by creation time.
type Repository interface {
	Save(ctx context.Context, e *Event) error
	List(ctx context.Context, filter Filter, limit int) ([]*Event, error)
}
