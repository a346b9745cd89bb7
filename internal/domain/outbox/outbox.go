package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the external resource a message synchronizes.
type Kind string

const (
	KindCampaign Kind = "CAMPAIGN"
	KindPosition Kind = "POSITION"
)

// Method is the verb replayed against the external system.
type Method string

const (
	MethodPost  Method = "POST"
	MethodPatch Method = "PATCH"
)

// Message is a not-yet-confirmed outbound change.
type Message struct {
	ID              uuid.UUID  `json:"id"`
	Kind            Kind       `json:"kind"`
	RefID           uuid.UUID  `json:"refId"`
	Method          Method     `json:"method"`
	LatestAttemptAt *time.Time `json:"latestAttemptAt,omitempty"`
	Errors          []string   `json:"errors"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func NewMessage(kind Kind, refID uuid.UUID, method Method) *Message {
	return &Message{
		ID:        uuid.New(),
		Kind:      kind,
		RefID:     refID,
		Method:    method,
		Errors:    []string{},
		CreatedAt: time.Now().UTC(),
	}
}

// RecordFailure stamps the attempt and appends a formatted error line.
func (m *Message) RecordFailure(at time.Time, err error) {
	t := at.UTC()
	m.LatestAttemptAt = &t
	m.Errors = append(m.Errors, fmt.Sprintf("%s - %s", t.Format(time.RFC3339), err.Error()))
}

// Due reports whether a failed message may be retried at now. A zero max
// disables backoff; otherwise the delay doubles per failure from one
// second up to max.
func (m *Message) Due(now time.Time, max time.Duration) bool {
	if max <= 0 || m.LatestAttemptAt == nil || len(m.Errors) == 0 {
		return true
	}
	delay := time.Second
	for i := 1; i < len(m.Errors) && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return !now.Before(m.LatestAttemptAt.Add(delay))
}
