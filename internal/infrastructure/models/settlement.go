package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AttemptID   uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	Hash        string          `gorm:"type:varchar(66);uniqueIndex;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	FromAddress string          `gorm:"type:varchar(42);not null;index"`
	Timestamp   time.Time
	CreatedAt   time.Time
}

type Subscription struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AttemptID       uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Address         string          `gorm:"type:varchar(42);not null"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null"`
	TokenAddress    string          `gorm:"type:varchar(42);not null"`
	TokenAmount     decimal.Decimal `gorm:"type:numeric(78,36);not null"`
	MerchantAddress string          `gorm:"type:varchar(42);not null;index"`
	ChainID         int64           `gorm:"not null"`
	CreatedAt       time.Time
}

type SettlementJournal struct {
	AttemptID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"type:varchar(20);not null"`
	TxHash    string    `gorm:"type:varchar(66);not null"`
	Payload   string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	Retries   int       `gorm:"not null;default:0"`
	LastError string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SettlementJournal) TableName() string {
	return "settlement_journal"
}
