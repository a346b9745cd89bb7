package command

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order is a single-field sort.
type Order struct {
	Field string
	Desc  bool
}

const (
	OrderByCreatedAt    = "createdAt"
	OrderByMeasuredAt   = "measuredAt"
	OrderByLatestSendAt = "latestSendAt"
)

var (
	OldestFirst = Order{Field: OrderByCreatedAt}
	NewestFirst = Order{Field: OrderByCreatedAt, Desc: true}
)

// Filter narrows command searches. Zero fields are ignored.
type Filter struct {
	VehicleID     string
	CampaignID    *uuid.UUID
	States        []State
	Types         []Type
	CreatedBefore *time.Time
	// SentOnly keeps commands that have been delivered at least once.
	SentOnly bool
}

// Match reports whether c satisfies the filter.
func (f Filter) Match(c *Command) bool {
	if f.VehicleID != "" && c.VehicleID != f.VehicleID {
		return false
	}
	if f.CampaignID != nil && c.CampaignID != *f.CampaignID {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, c.State) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, c.Type) {
		return false
	}
	if f.CreatedBefore != nil && !c.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.SentOnly && c.LatestSendAt == nil {
		return false
	}
	return true
}

func containsState(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsType(types []Type, t Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Repository defines command persistence. A non-positive limit returns
// every match.
type Repository interface {
	Save(ctx context.Context, cmd *Command) error
	SaveAll(ctx context.Context, cmds []*Command) error
	GetByID(ctx context.Context, id uuid.UUID) (*Command, error)
	List(ctx context.Context, filter Filter, order Order, limit int) ([]*Command, error)
}

// First returns the first command matching filter in order, or nil.
func First(ctx context.Context, repo Repository, filter Filter, order Order) (*Command, error) {
	cmds, err := repo.List(ctx, filter, order, 1)
	if err != nil || len(cmds) == 0 {
		return nil, err
	}
	return cmds[0], nil
}
