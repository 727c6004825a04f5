package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
)

// SubscriptionRepositoryImpl implements SubscriptionRepository
type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepositoryImpl {
	return &SubscriptionRepositoryImpl{db: db}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, record *entities.SubscriptionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m := &models.Subscription{
		ID:              record.ID,
		AttemptID:       record.AttemptID,
		Address:         record.Address.Hex(),
		ProductID:       record.ProductID,
		TokenAddress:    record.TokenAddress.Hex(),
		TokenAmount:     record.TokenAmount,
		MerchantAddress: record.MerchantAddress.Hex(),
		ChainID:         int64(record.ChainID),
		CreatedAt:       record.CreatedAt,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: subscription for attempt %s", domainerrors.ErrAlreadyExists, record.AttemptID)
		}
		return err
	}
	record.CreatedAt = m.CreatedAt
	return nil
}

func (r *SubscriptionRepositoryImpl) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SubscriptionRecord, error) {
	var m models.Subscription
	if err := GetDB(ctx, r.db).Where("attempt_id = ?", attemptID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return subscriptionToEntity(&m), nil
}

// ListByMerchantAddress returns subscriptions settling into merchant, newest first
func (r *SubscriptionRepositoryImpl) ListByMerchantAddress(ctx context.Context, merchant common.Address, limit, offset int) ([]*entities.SubscriptionRecord, int64, error) {
	query := GetDB(ctx, r.db).Model(&models.Subscription{}).Where("merchant_address = ?", merchant.Hex())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Subscription
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*entities.SubscriptionRecord, 0, len(ms))
	for i := range ms {
		records = append(records, subscriptionToEntity(&ms[i]))
	}
	return records, total, nil
}

func subscriptionToEntity(m *models.Subscription) *entities.SubscriptionRecord {
	return &entities.SubscriptionRecord{
		ID:              m.ID,
		AttemptID:       m.AttemptID,
		Address:         common.HexToAddress(m.Address),
		ProductID:       m.ProductID,
		TokenAddress:    common.HexToAddress(m.TokenAddress),
		TokenAmount:     m.TokenAmount,
		MerchantAddress: common.HexToAddress(m.MerchantAddress),
		ChainID:         uint64(m.ChainID),
		CreatedAt:       m.CreatedAt,
	}
}
