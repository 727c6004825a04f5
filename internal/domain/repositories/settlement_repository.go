package repositories

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/builders-garden/swifty/internal/domain/entities"
)

// TransactionFilter narrows a merchant transaction listing
type TransactionFilter struct {
	UserID      uuid.UUID
	FromAddress *common.Address
}

// TransactionRepository defines settlement transaction data operations
type TransactionRepository interface {
	Create(ctx context.Context, record *entities.TransactionRecord) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.TransactionRecord, error)
	GetByHash(ctx context.Context, hash common.Hash) (*entities.TransactionRecord, error)
	List(ctx context.Context, filter TransactionFilter, limit, offset int) ([]*entities.TransactionRecord, int64, error)
}

// SubscriptionRepository defines subscription data operations
type SubscriptionRepository interface {
	Create(ctx context.Context, record *entities.SubscriptionRecord) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SubscriptionRecord, error)
	ListByMerchantAddress(ctx context.Context, merchant common.Address, limit, offset int) ([]*entities.SubscriptionRecord, int64, error)
}

// SettlementJournalRepository persists confirmed on-chain actions awaiting settlement
type SettlementJournalRepository interface {
	Create(ctx context.Context, entry *entities.SettlementJournalEntry) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SettlementJournalEntry, error)
	ListPending(ctx context.Context, limit int) ([]*entities.SettlementJournalEntry, error)
	MarkSettled(ctx context.Context, attemptID uuid.UUID) error
	RecordFailure(ctx context.Context, attemptID uuid.UUID, reason string) error
}
