package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementTarget is the asset and account a merchant settles into
type SettlementTarget struct {
	ChainID   uint64         `json:"chainId"`
	Token     common.Address `json:"token"`
	Recipient common.Address `json:"recipient"`
}

// IsSettlementAsset reports whether desc already is the settlement asset
func (t SettlementTarget) IsSettlementAsset(desc TokenDescriptor) bool {
	return desc.ChainID == t.ChainID && desc.Address == t.Token
}

// TransactionRecord is the persisted record of a one-time payment
type TransactionRecord struct {
	ID          uuid.UUID       `json:"id"`
	AttemptID   uuid.UUID       `json:"attemptId"`
	UserID      uuid.UUID       `json:"userId"`
	ProductID   uuid.UUID       `json:"productId"`
	Hash        common.Hash     `json:"hash"`
	Amount      decimal.Decimal `json:"amount"`
	FromAddress common.Address  `json:"fromAddress"`
	Timestamp   time.Time       `json:"timestamp"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SubscriptionRecord is the persisted registration of a recurring payment
type SubscriptionRecord struct {
	ID              uuid.UUID       `json:"id"`
	AttemptID       uuid.UUID       `json:"attemptId"`
	Address         common.Address  `json:"address"`
	ProductID       uuid.UUID       `json:"productId"`
	TokenAddress    common.Address  `json:"tokenAddress"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
	MerchantAddress common.Address  `json:"merchantAddress"`
	ChainID         uint64          `json:"chainId"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// SettlementKind tells which record a journal entry carries
type SettlementKind string

const (
	SettlementKindTransaction  SettlementKind = "TRANSACTION"
	SettlementKindSubscription SettlementKind = "SUBSCRIPTION"
)

// SettlementJournalStatus is the replay status of a journal entry
type SettlementJournalStatus string

const (
	SettlementJournalPending SettlementJournalStatus = "PENDING"
	SettlementJournalSettled SettlementJournalStatus = "SETTLED"
	// SettlementJournalPartial marks a transfer that stopped after moving
	// some value. It is never replayed and needs manual reconciliation.
	SettlementJournalPartial SettlementJournalStatus = "PARTIAL"
)

// SettlementJournalEntry remembers a confirmed on-chain action until its
// settlement record has been written.
type SettlementJournalEntry struct {
	AttemptID uuid.UUID               `json:"attemptId"`
	Kind      SettlementKind          `json:"kind"`
	TxHash    common.Hash             `json:"txHash"`
	Payload   []byte                  `json:"payload"`
	Status    SettlementJournalStatus `json:"status"`
	Retries   int                     `json:"retries"`
	LastError string                  `json:"lastError,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}
