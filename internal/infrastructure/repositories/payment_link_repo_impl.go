package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
)

// PaymentLinkRepositoryImpl implements PaymentLinkRepository
type PaymentLinkRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentLinkRepository(db *gorm.DB) *PaymentLinkRepositoryImpl {
	return &PaymentLinkRepositoryImpl{db: db}
}

// Create stores the link together with its product. The merchant must exist.
func (r *PaymentLinkRepositoryImpl) Create(ctx context.Context, link *entities.PaymentLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.Product.ID == uuid.Nil {
		link.Product.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	product := &models.Product{
		ID:            link.Product.ID,
		UserID:        link.MerchantID,
		Name:          link.Product.Name,
		Description:   link.Product.Description,
		ImageURL:      link.Product.ImageURL,
		Price:         link.Product.Price,
		PaymentMethod: string(link.Product.PaymentMethod),
		CreatedAt:     link.CreatedAt,
		UpdatedAt:     link.CreatedAt,
	}
	m := &models.PaymentLink{
		ID:              link.ID,
		Slug:            link.Slug,
		UserID:          link.MerchantID,
		ProductID:       link.Product.ID,
		RequiresWorldID: link.RequiresIdentityVerification,
		RedirectURL:     link.RedirectURL,
		CreatedAt:       link.CreatedAt,
		UpdatedAt:       link.CreatedAt,
	}

	db := GetDB(ctx, r.db)
	if err := db.Create(product).Error; err != nil {
		return err
	}
	return db.Omit("User", "Product").Create(m).Error
}

func (r *PaymentLinkRepositoryImpl) GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error) {
	var m models.PaymentLink
	err := GetDB(ctx, r.db).
		Preload("User").
		Preload("Product").
		Where("slug = ?", slug).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *PaymentLinkRepositoryImpl) toEntity(m *models.PaymentLink) *entities.PaymentLink {
	return &entities.PaymentLink{
		ID:         m.ID,
		Slug:       m.Slug,
		MerchantID: m.UserID,
		Merchant:   userToEntity(&m.User),
		Product: entities.Product{
			ID:            m.Product.ID,
			Name:          m.Product.Name,
			Description:   m.Product.Description,
			ImageURL:      m.Product.ImageURL,
			Price:         m.Product.Price,
			PaymentMethod: entities.PaymentMethod(m.Product.PaymentMethod),
		},
		RequiresIdentityVerification: m.RequiresWorldID,
		RedirectURL:                  m.RedirectURL,
		CreatedAt:                    m.CreatedAt,
	}
}
