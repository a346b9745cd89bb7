package campaign

import (
	"time"

	"github.com/google/uuid"
)

// State represents campaign lifecycle state.
type State string

const (
	StateCreated         State = "CREATED"
	StateRunning         State = "RUNNING"
	StateCompletePending State = "COMPLETE_PENDING"
	StateCompleted       State = "COMPLETED"
	StateAborted         State = "ABORTED"
)

func (s State) Valid() bool {
	switch s {
	case StateCreated, StateRunning, StateCompletePending, StateCompleted, StateAborted:
		return true
	}
	return false
}

// IsActive reports whether the campaign still drives its vehicles.
func (s State) IsActive() bool {
	return s == StateCreated || s == StateRunning || s == StateCompletePending
}

// Configuration binds a routing endpoint and optionally a vehicle to a campaign.
type Configuration struct {
	ClientID       string `json:"clientId"`
	EndpointID     string `json:"endpointId"`
	OrchestratorID string `json:"orchestratorId"`
	VehicleID      string `json:"vehicleId,omitempty"`
}

// Campaign is a bounded operational session.
type Campaign struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	State          State           `json:"state"`
	SiteID         string          `json:"siteId"`
	Configurations []Configuration `json:"configurations"`
	StartedAt      time.Time       `json:"startedAt"`
	StoppedAt      *time.Time      `json:"stoppedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// New creates a campaign in state CREATED.
func New(name, siteID string, configs []Configuration) *Campaign {
	now := time.Now().UTC()
	return &Campaign{
		ID:             uuid.New(),
		Name:           name,
		State:          StateCreated,
		SiteID:         siteID,
		Configurations: configs,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// VehicleIDs returns the configured vehicles in configuration order.
func (c *Campaign) VehicleIDs() []string {
	var ids []string
	for _, cfg := range c.Configurations {
		if cfg.VehicleID != "" {
			ids = append(ids, cfg.VehicleID)
		}
	}
	return ids
}

func (c *Campaign) HasVehicles() bool {
	return len(c.VehicleIDs()) > 0
}

func (c *Campaign) HasVehicle(vehicleID string) bool {
	for _, id := range c.VehicleIDs() {
		if id == vehicleID {
			return true
		}
	}
	return false
}

// ReadyToFinalize decides whether a COMPLETE_PENDING campaign may move to
// COMPLETED after vehicleID confirmed completion. The first confirmation
// finalizes the campaign, even when several vehicles are configured.
func (c *Campaign) ReadyToFinalize(vehicleID string) bool {
	return c.State == StateCompletePending && c.HasVehicle(vehicleID)
}
