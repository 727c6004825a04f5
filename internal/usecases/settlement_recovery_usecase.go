package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/metrics"
	"github.com/builders-garden/swifty/pkg/logger"
)

// ReplayResult summarizes one recovery batch
type ReplayResult struct {
	Settled int
	Failed  int
	Skipped int
}

// SettlementRecoveryUsecase replays journaled settlements whose record
// write failed after the on-chain action was confirmed. It never touches
// the chain.
type SettlementRecoveryUsecase struct {
	journal    repositories.SettlementJournalRepository
	recorder   *SettlementRecorder
	metrics    metrics.Recorder
	maxRetries int
}

func NewSettlementRecoveryUsecase(journal repositories.SettlementJournalRepository, recorder *SettlementRecorder, rec metrics.Recorder, maxRetries int) *SettlementRecoveryUsecase {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &SettlementRecoveryUsecase{journal: journal, recorder: recorder, metrics: rec, maxRetries: maxRetries}
}

// ReplayPending replays up to limit pending entries
func (u *SettlementRecoveryUsecase) ReplayPending(ctx context.Context, limit int) (ReplayResult, error) {
	var result ReplayResult
	entries, err := u.journal.ListPending(ctx, limit)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if u.maxRetries > 0 && entry.Retries >= u.maxRetries {
			result.Skipped++
			continue
		}
		if err := u.replay(ctx, entry); err != nil {
			result.Failed++
			logger.Warn(ctx, "Settlement replay failed",
				zap.String("attempt_id", entry.AttemptID.String()),
				zap.Int("retries", entry.Retries+1),
				zap.Error(err),
			)
			continue
		}
		result.Settled++
	}
	return result, nil
}

// Settle replays the journal entry of one attempt. Already settled entries
// are returned as is. Partial transfers are refused.
func (u *SettlementRecoveryUsecase) Settle(ctx context.Context, attemptID uuid.UUID) (*entities.SettlementJournalEntry, error) {
	entry, err := u.journal.GetByAttemptID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case entities.SettlementJournalSettled:
		return entry, nil
	case entities.SettlementJournalPartial:
		return nil, fmt.Errorf("%w: attempt %s stopped after tx %s", domainerrors.ErrTransferIncomplete, attemptID, entry.TxHash.Hex())
	}
	if err := u.replay(ctx, entry); err != nil {
		return nil, err
	}
	entry.Status = entities.SettlementJournalSettled
	entry.LastError = ""
	return entry, nil
}

func (u *SettlementRecoveryUsecase) replay(ctx context.Context, entry *entities.SettlementJournalEntry) error {
	ctx = logger.WithAttemptID(ctx, entry.AttemptID.String())

	err := u.write(ctx, entry)
	if err != nil {
		u.metrics.SettlementReplay("failed")
		if jerr := u.journal.RecordFailure(ctx, entry.AttemptID, err.Error()); jerr != nil {
			return errors.Join(err, jerr)
		}
		return err
	}
	u.metrics.SettlementReplay("settled")
	if err := u.journal.MarkSettled(ctx, entry.AttemptID); err != nil {
		return err
	}
	logger.Info(ctx, "Settlement replayed", zap.String("kind", string(entry.Kind)))
	return nil
}

func (u *SettlementRecoveryUsecase) write(ctx context.Context, entry *entities.SettlementJournalEntry) error {
	switch entry.Kind {
	case entities.SettlementKindTransaction:
		var record entities.TransactionRecord
		if err := json.Unmarshal(entry.Payload, &record); err != nil {
			return fmt.Errorf("%w: decode journal payload: %w", domainerrors.ErrSettlementPersistFailed, err)
		}
		_, err := u.recorder.RecordTransaction(ctx, &record)
		return err
	case entities.SettlementKindSubscription:
		var record entities.SubscriptionRecord
		if err := json.Unmarshal(entry.Payload, &record); err != nil {
			return fmt.Errorf("%w: decode journal payload: %w", domainerrors.ErrSettlementPersistFailed, err)
		}
		_, err := u.recorder.RegisterSubscription(ctx, &record)
		return err
	}
	return fmt.Errorf("%w: unknown journal kind %q", domainerrors.ErrSettlementPersistFailed, entry.Kind)
}
