package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/domain/repositories"
)

// PaymentLinkUsecase serves payment links and the token catalog to payers
type PaymentLinkUsecase struct {
	links   repositories.PaymentLinkRepository
	users   repositories.UserRepository
	catalog *entities.TokenCatalog
	uow     repositories.UnitOfWork
}

func NewPaymentLinkUsecase(links repositories.PaymentLinkRepository, users repositories.UserRepository, catalog *entities.TokenCatalog, uow repositories.UnitOfWork) *PaymentLinkUsecase {
	if catalog == nil {
		catalog = entities.DefaultCatalog()
	}
	return &PaymentLinkUsecase{links: links, users: users, catalog: catalog, uow: uow}
}

func (u *PaymentLinkUsecase) GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", domainerrors.ErrBadRequest)
	}
	return u.links.GetBySlug(ctx, slug)
}

// Tokens lists the selectable tokens for a payment method
func (u *PaymentLinkUsecase) Tokens(method entities.PaymentMethod) ([]entities.TokenDescriptor, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domainerrors.ErrBadRequest, method)
	}
	return u.catalog.Tokens(method), nil
}

// CreateLink stores a merchant, when new, together with a link for one product
func (u *PaymentLinkUsecase) CreateLink(ctx context.Context, merchant *entities.User, link *entities.PaymentLink) error {
	if !link.Product.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", domainerrors.ErrBadRequest, link.Product.PaymentMethod)
	}
	if strings.TrimSpace(link.Slug) == "" || !link.Product.Price.IsPositive() {
		return fmt.Errorf("%w: slug and a positive price are required", domainerrors.ErrBadRequest)
	}

	return u.uow.Do(ctx, func(ctx context.Context) error {
		if merchant.ID == uuid.Nil {
			if err := u.users.Create(ctx, merchant); err != nil {
				return err
			}
		} else if _, err := u.users.GetByID(ctx, merchant.ID); err != nil {
			return err
		}
		link.MerchantID = merchant.ID
		link.Merchant = merchant
		return u.links.Create(ctx, link)
	})
}
