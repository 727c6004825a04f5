package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/builders-garden/swifty/internal/domain/entities"
)

// UserRepository defines merchant account data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}
