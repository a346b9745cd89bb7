package position

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines position persistence.
type Repository interface {
	Save(ctx context.Context, p *Position) error
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)
}
