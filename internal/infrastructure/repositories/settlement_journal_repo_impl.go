package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
)

// SettlementJournalRepositoryImpl implements SettlementJournalRepository
type SettlementJournalRepositoryImpl struct {
	db *gorm.DB
}

func NewSettlementJournalRepository(db *gorm.DB) *SettlementJournalRepositoryImpl {
	return &SettlementJournalRepositoryImpl{db: db}
}

func (r *SettlementJournalRepositoryImpl) Create(ctx context.Context, entry *entities.SettlementJournalEntry) error {
	now := time.Now()
	if entry.Status == "" {
		entry.Status = entities.SettlementJournalPending
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now

	m := &models.SettlementJournal{
		AttemptID: entry.AttemptID,
		Kind:      string(entry.Kind),
		TxHash:    entry.TxHash.Hex(),
		Payload:   string(entry.Payload),
		Status:    string(entry.Status),
		Retries:   entry.Retries,
		LastError: entry.LastError,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: journal entry for attempt %s", domainerrors.ErrAlreadyExists, entry.AttemptID)
		}
		return err
	}
	return nil
}

func (r *SettlementJournalRepositoryImpl) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SettlementJournalEntry, error) {
	var m models.SettlementJournal
	if err := GetDB(ctx, r.db).Where("attempt_id = ?", attemptID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return journalToEntity(&m), nil
}

// ListPending returns the oldest pending entries first
func (r *SettlementJournalRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*entities.SettlementJournalEntry, error) {
	var ms []models.SettlementJournal
	if err := GetDB(ctx, r.db).
		Where("status = ?", string(entities.SettlementJournalPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	entries := make([]*entities.SettlementJournalEntry, 0, len(ms))
	for i := range ms {
		entries = append(entries, journalToEntity(&ms[i]))
	}
	return entries, nil
}

func (r *SettlementJournalRepositoryImpl) MarkSettled(ctx context.Context, attemptID uuid.UUID) error {
	return r.update(ctx, attemptID, map[string]interface{}{
		"status":     string(entities.SettlementJournalSettled),
		"last_error": "",
		"updated_at": time.Now(),
	})
}

func (r *SettlementJournalRepositoryImpl) RecordFailure(ctx context.Context, attemptID uuid.UUID, reason string) error {
	return r.update(ctx, attemptID, map[string]interface{}{
		"retries":    gorm.Expr("retries + 1"),
		"last_error": reason,
		"updated_at": time.Now(),
	})
}

func (r *SettlementJournalRepositoryImpl) update(ctx context.Context, attemptID uuid.UUID, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&models.SettlementJournal{}).
		Where("attempt_id = ?", attemptID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func journalToEntity(m *models.SettlementJournal) *entities.SettlementJournalEntry {
	return &entities.SettlementJournalEntry{
		AttemptID: m.AttemptID,
		Kind:      entities.SettlementKind(m.Kind),
		TxHash:    common.HexToHash(m.TxHash),
		Payload:   []byte(m.Payload),
		Status:    entities.SettlementJournalStatus(m.Status),
		Retries:   m.Retries,
		LastError: m.LastError,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
