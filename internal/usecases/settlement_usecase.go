package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/pkg/logger"
	"github.com/builders-garden/swifty/pkg/utils"
)

// SettlementUsecase is the backend side of the settlement write API.
// Records are deduplicated by attempt id.
type SettlementUsecase struct {
	transactions  repositories.TransactionRepository
	subscriptions repositories.SubscriptionRepository
	users         repositories.UserRepository
	uow           repositories.UnitOfWork
}

func NewSettlementUsecase(
	transactions repositories.TransactionRepository,
	subscriptions repositories.SubscriptionRepository,
	users repositories.UserRepository,
	uow repositories.UnitOfWork,
) *SettlementUsecase {
	return &SettlementUsecase{
		transactions:  transactions,
		subscriptions: subscriptions,
		users:         users,
		uow:           uow,
	}
}

// SaveTransaction stores record unless one already exists for its attempt.
// created is false when the stored duplicate is returned.
func (u *SettlementUsecase) SaveTransaction(ctx context.Context, record *entities.TransactionRecord) (stored *entities.TransactionRecord, created bool, err error) {
	if record.AttemptID == uuid.Nil || record.Hash == (common.Hash{}) || !record.Amount.IsPositive() {
		return nil, false, fmt.Errorf("%w: attemptId, hash and a positive amount are required", domainerrors.ErrBadRequest)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	err = u.uow.Do(ctx, func(ctx context.Context) error {
		existing, err := u.transactions.GetByAttemptID(ctx, record.AttemptID)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		if err := u.transactions.Create(ctx, record); err != nil {
			return err
		}
		stored, created = record, true
		return nil
	})
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		// lost a race with a concurrent write of the same attempt
		existing, getErr := u.transactions.GetByAttemptID(ctx, record.AttemptID)
		if getErr != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Info(ctx, "Transaction stored",
			zap.String("attempt_id", record.AttemptID.String()),
			zap.String("tx_hash", record.Hash.Hex()),
		)
	}
	return stored, created, nil
}

// SaveSubscription stores record unless one already exists for its attempt
func (u *SettlementUsecase) SaveSubscription(ctx context.Context, record *entities.SubscriptionRecord) (stored *entities.SubscriptionRecord, created bool, err error) {
	if record.AttemptID == uuid.Nil || record.ChainID == 0 || !record.TokenAmount.IsPositive() {
		return nil, false, fmt.Errorf("%w: attemptId, chainId and a positive tokenAmount are required", domainerrors.ErrBadRequest)
	}

	err = u.uow.Do(ctx, func(ctx context.Context) error {
		existing, err := u.subscriptions.GetByAttemptID(ctx, record.AttemptID)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		if err := u.subscriptions.Create(ctx, record); err != nil {
			return err
		}
		stored, created = record, true
		return nil
	})
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		existing, getErr := u.subscriptions.GetByAttemptID(ctx, record.AttemptID)
		if getErr != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Info(ctx, "Subscription stored",
			zap.String("attempt_id", record.AttemptID.String()),
			zap.String("merchant", record.MerchantAddress.Hex()),
		)
	}
	return stored, created, nil
}

// RecordTransaction implements SettlementAPI in-process
func (u *SettlementUsecase) RecordTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error) {
	stored, _, err := u.SaveTransaction(ctx, record)
	return stored, err
}

// RegisterSubscription implements SettlementAPI in-process
func (u *SettlementUsecase) RegisterSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, error) {
	stored, _, err := u.SaveSubscription(ctx, record)
	return stored, err
}

// ListTransactions returns a merchant's transactions, optionally from one payer
func (u *SettlementUsecase) ListTransactions(ctx context.Context, merchantID uuid.UUID, from *common.Address, page utils.Page) ([]*entities.TransactionRecord, utils.PageMeta, error) {
	records, total, err := u.transactions.List(ctx, repositories.TransactionFilter{
		UserID:      merchantID,
		FromAddress: from,
	}, page.Size, page.Offset())
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return records, page.Meta(total), nil
}

// ListSubscriptions returns subscriptions settling into the merchant's smart account
func (u *SettlementUsecase) ListSubscriptions(ctx context.Context, merchantID uuid.UUID, page utils.Page) ([]*entities.SubscriptionRecord, utils.PageMeta, error) {
	merchant, err := u.users.GetByID(ctx, merchantID)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	records, total, err := u.subscriptions.ListByMerchantAddress(ctx, merchant.SmartAccountAddress, page.Size, page.Offset())
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return records, page.Meta(total), nil
}
