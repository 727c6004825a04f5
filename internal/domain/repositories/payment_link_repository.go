package repositories

import (
	"context"

	"github.com/builders-garden/swifty/internal/domain/entities"
)

// PaymentLinkRepository defines payment link data operations
type PaymentLinkRepository interface {
	Create(ctx context.Context, link *entities.PaymentLink) error
	GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error)
}
