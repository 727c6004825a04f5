package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/pkg/logger"
)

// SettlementRecorder writes settlement records after the on-chain action
// is confirmed. Each call is a single write attempt.
type SettlementRecorder struct {
	api     SettlementAPI
	timeout Timeouts
}

func NewSettlementRecorder(api SettlementAPI, timeouts Timeouts) *SettlementRecorder {
	return &SettlementRecorder{api: api, timeout: timeouts}
}

func (r *SettlementRecorder) RecordTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout.Settlement)
	defer cancel()

	stored, err := r.api.RecordTransaction(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%w: record transaction %s: %w", domainerrors.ErrSettlementPersistFailed, record.Hash.Hex(), err)
	}
	logger.Info(ctx, "Transaction recorded",
		zap.String("record_id", stored.ID.String()),
		zap.String("tx_hash", stored.Hash.Hex()),
	)
	return stored, nil
}

func (r *SettlementRecorder) RegisterSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout.Settlement)
	defer cancel()

	stored, err := r.api.RegisterSubscription(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%w: register subscription: %w", domainerrors.ErrSettlementPersistFailed, err)
	}
	logger.Info(ctx, "Subscription registered",
		zap.String("record_id", stored.ID.String()),
		zap.String("payer", stored.Address.Hex()),
	)
	return stored, nil
}
