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
	domainRepos "github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
)

// TransactionRepositoryImpl implements TransactionRepository
type TransactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepositoryImpl {
	return &TransactionRepositoryImpl{db: db}
}

// Create stores a transaction record. A second record for the same attempt
// or hash returns ErrAlreadyExists.
func (r *TransactionRepositoryImpl) Create(ctx context.Context, record *entities.TransactionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m := &models.Transaction{
		ID:          record.ID,
		AttemptID:   record.AttemptID,
		UserID:      record.UserID,
		ProductID:   record.ProductID,
		Hash:        record.Hash.Hex(),
		Amount:      record.Amount,
		FromAddress: record.FromAddress.Hex(),
		Timestamp:   record.Timestamp,
		CreatedAt:   record.CreatedAt,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: transaction for attempt %s", domainerrors.ErrAlreadyExists, record.AttemptID)
		}
		return err
	}
	record.CreatedAt = m.CreatedAt
	return nil
}

func (r *TransactionRepositoryImpl) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.TransactionRecord, error) {
	return r.first(ctx, "attempt_id = ?", attemptID)
}

func (r *TransactionRepositoryImpl) GetByHash(ctx context.Context, hash common.Hash) (*entities.TransactionRecord, error) {
	return r.first(ctx, "hash = ?", hash.Hex())
}

func (r *TransactionRepositoryImpl) first(ctx context.Context, query string, arg interface{}) (*entities.TransactionRecord, error) {
	var m models.Transaction
	if err := GetDB(ctx, r.db).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return transactionToEntity(&m), nil
}

// List returns a merchant's transactions, newest first
func (r *TransactionRepositoryImpl) List(ctx context.Context, filter domainRepos.TransactionFilter, limit, offset int) ([]*entities.TransactionRecord, int64, error) {
	query := GetDB(ctx, r.db).Model(&models.Transaction{}).Where("user_id = ?", filter.UserID)
	if filter.FromAddress != nil {
		query = query.Where("from_address = ?", filter.FromAddress.Hex())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Transaction
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*entities.TransactionRecord, 0, len(ms))
	for i := range ms {
		records = append(records, transactionToEntity(&ms[i]))
	}
	return records, total, nil
}

func transactionToEntity(m *models.Transaction) *entities.TransactionRecord {
	return &entities.TransactionRecord{
		ID:          m.ID,
		AttemptID:   m.AttemptID,
		UserID:      m.UserID,
		ProductID:   m.ProductID,
		Hash:        common.HexToHash(m.Hash),
		Amount:      m.Amount,
		FromAddress: common.HexToAddress(m.FromAddress),
		Timestamp:   m.Timestamp,
		CreatedAt:   m.CreatedAt,
	}
}
