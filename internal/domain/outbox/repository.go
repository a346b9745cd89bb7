package outbox

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines outbox persistence.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	// ListPending returns queued messages of kind, oldest first.
	ListPending(ctx context.Context, kind Kind) ([]*Message, error)
	Update(ctx context.Context, m *Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, kind Kind) (int, error)
}
