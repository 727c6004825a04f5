package repositories

import (
	"context"
)

// UnitOfWork scopes repository writes to one transaction. Repositories
// called with the ctx handed to fn join it; nested Do calls reuse it.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
