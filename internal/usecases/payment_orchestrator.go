package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/metrics"
	"github.com/builders-garden/swifty/pkg/logger"
	"github.com/builders-garden/swifty/pkg/utils"
)

// PayInput starts a payment attempt for a link
type PayInput struct {
	Slug             string
	SelectionKey     string
	PayerEmail       string
	IdentityVerified bool
	AttemptID        *uuid.UUID
}

// OrchestratorConfig holds the settlement target and router settings
type OrchestratorConfig struct {
	SettlementChainID uint64
	SettlementToken   common.Address
	Router            common.Address
	LockTTL           time.Duration
	Timeouts          Timeouts
}

// OrchestratorDeps are the collaborators of the orchestrator
type OrchestratorDeps struct {
	Links      repositories.PaymentLinkRepository
	Journal    repositories.SettlementJournalRepository
	Catalog    *entities.TokenCatalog
	Wallet     Wallet
	Chains     *ChainAdapter
	Allowances *AllowanceManager
	Routes     *RouteResolver
	Transfers  *ValueTransferExecutor
	Recorder   *SettlementRecorder
	Amounts    *TokenAmountCalculator
	Locker     AttemptLocker
	Registry   *AttemptRegistry
	Metrics    metrics.Recorder
}

// PaymentOrchestrator drives one payment attempt through its state machine
type PaymentOrchestrator struct {
	OrchestratorDeps
	cfg OrchestratorConfig
	now func() time.Time
}

func NewPaymentOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *PaymentOrchestrator {
	if deps.Catalog == nil {
		deps.Catalog = entities.DefaultCatalog()
	}
	if deps.Registry == nil {
		deps.Registry = NewAttemptRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopRecorder{}
	}
	return &PaymentOrchestrator{OrchestratorDeps: deps, cfg: cfg, now: time.Now}
}

// Pay executes a payment attempt. The returned attempt is SETTLED on
// success and FAILED with the originating error kind otherwise. Errors
// raised before the attempt exists return a zero attempt.
func (o *PaymentOrchestrator) Pay(ctx context.Context, in PayInput) (entities.Attempt, error) {
	link, err := o.Links.GetBySlug(ctx, in.Slug)
	if err != nil {
		return entities.Attempt{}, err
	}
	if link.RequiresIdentityVerification && !in.IdentityVerified {
		return entities.Attempt{}, domainerrors.ErrIdentityNotVerified
	}
	if link.Merchant == nil {
		return entities.Attempt{}, fmt.Errorf("%w: payment link %s has no merchant", domainerrors.ErrNotFound, link.Slug)
	}

	token, err := o.Catalog.Lookup(link.Product.PaymentMethod, in.SelectionKey)
	if err != nil {
		return entities.Attempt{}, err
	}

	id := utils.GenerateUUIDv7()
	if in.AttemptID != nil && *in.AttemptID != uuid.Nil {
		id = *in.AttemptID
	}
	payer := o.Wallet.Address()
	ctx = logger.WithAttemptID(ctx, id.String())

	// one attempt per signer: the wallet has a single active chain and nonce
	lockKey := attemptLockKey(payer)
	acquired, err := o.Locker.Acquire(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		return entities.Attempt{}, fmt.Errorf("acquire attempt lock: %w", err)
	}
	if !acquired {
		return entities.Attempt{}, fmt.Errorf("%w: signer %s is busy", domainerrors.ErrAttemptInProgress, payer.Hex())
	}
	defer func() {
		if err := o.Locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Warn(ctx, "Failed to release attempt lock", zap.Error(err))
		}
	}()

	if err := o.ensureNotJournaled(ctx, id); err != nil {
		return entities.Attempt{}, err
	}

	attemptCtx, release := o.Registry.Register(ctx, id)
	defer release()
	attemptCtx, cancel := withTimeout(attemptCtx, o.cfg.Timeouts.Attempt)
	defer cancel()

	attempt := entities.NewAttempt(id, link, token, payer)
	attempt.PayerEmail = in.PayerEmail

	logger.Info(ctx, "Payment attempt started",
		zap.String("slug", link.Slug),
		zap.String("token", token.Key()),
		zap.String("payer", payer.Hex()),
		zap.String("payment_method", string(link.Product.PaymentMethod)),
	)

	started := o.now()
	attempt, err = o.run(attemptCtx, attempt)
	if err != nil {
		if o.Registry.Cancelled(id) && !errors.Is(err, domainerrors.ErrAttemptCancelled) {
			err = fmt.Errorf("%w: %v", domainerrors.ErrAttemptCancelled, err)
		}
		from := attempt.State
		attempt = attempt.Fail(err)
		o.Metrics.AttemptTransition(string(from), string(attempt.State))
		logger.Error(ctx, "Payment attempt failed",
			zap.String("state", string(from)),
			zap.String("reason", attempt.Reason),
			zap.Error(err),
		)
	} else {
		logger.Info(ctx, "Payment attempt settled", zap.Stringer("tx_hashes", hashList(attempt.TxHashes)))
	}
	o.Metrics.AttemptFinished(string(attempt.State), attempt.Reason, o.now().Sub(started))
	return attempt, err
}

// Cancel stops an in-flight attempt. Transactions already submitted stay on chain.
func (o *PaymentOrchestrator) Cancel(attemptID uuid.UUID) error {
	if !o.Registry.Cancel(attemptID) {
		return fmt.Errorf("%w: attempt %s is not in flight", domainerrors.ErrNotFound, attemptID)
	}
	return nil
}

// ensureNotJournaled refuses attempt ids that already moved value. Those
// are finished through the settlement journal, never by paying again.
func (o *PaymentOrchestrator) ensureNotJournaled(ctx context.Context, id uuid.UUID) error {
	entry, err := o.Journal.GetByAttemptID(ctx, id)
	switch {
	case err == nil:
		return fmt.Errorf("%w: attempt %s is journaled as %s", domainerrors.ErrAlreadyExists, id, entry.Status)
	case errors.Is(err, domainerrors.ErrNotFound):
		return nil
	}
	return fmt.Errorf("read settlement journal: %w", err)
}

func (o *PaymentOrchestrator) run(ctx context.Context, a entities.Attempt) (entities.Attempt, error) {
	link := a.Link
	target := o.target(link)

	if err := o.step(ctx, stepEnsureChain, func() error {
		return o.Chains.EnsureChain(ctx, a.Token.ChainID)
	}); err != nil {
		return a, err
	}
	a, err := o.advance(ctx, a, entities.AttemptChainReady)
	if err != nil {
		return a, err
	}

	var amount *big.Int
	if err := o.step(ctx, stepTokenAmount, func() error {
		amount, err = o.Amounts.Amount(ctx, a.Token, link.Product.Price)
		return err
	}); err != nil {
		return a, err
	}
	a = a.WithTokenAmount(amount)

	fastPath := !link.IsRecurring() && target.IsSettlementAsset(a.Token)
	var approval AllowanceResult
	if !a.Token.IsNative() {
		if err := o.step(ctx, stepAllowance, func() error {
			approval, err = o.Allowances.EnsureAllowance(ctx, AllowanceRequest{
				Token:              a.Token,
				Owner:              a.Payer,
				Spender:            o.cfg.Router,
				Required:           amount,
				Policy:             link.Product.PaymentMethod,
				SettlementFastPath: fastPath,
			})
			return err
		}); err != nil {
			return a, err
		}
	}
	if a, err = o.advance(ctx, a, entities.AttemptAllowanceReady); err != nil {
		return a, err
	}

	if link.IsRecurring() {
		return o.subscribe(ctx, a, target, approval.TxHash)
	}

	kind := TransferDirect
	details := TransferDetails{Token: a.Token, Recipient: target.Recipient, Amount: amount}
	if !fastPath {
		var route *entities.Route
		if err := o.step(ctx, stepResolveRoute, func() error {
			route, err = o.Routes.ResolveRoute(ctx, entities.RouteRequest{
				PayerAddress:      a.Payer,
				SettlementAddress: target.Recipient,
				SourceChainID:     a.Token.ChainID,
				SourceToken:       a.Token.Address,
				SourceAmount:      amount,
				DestChainID:       target.ChainID,
				DestToken:         target.Token,
			})
			return err
		}); err != nil {
			return a, err
		}
		if a, err = o.advance(ctx, a, entities.AttemptRouteResolved); err != nil {
			return a, err
		}
		kind = TransferRouted
		details.Route = route
	}

	var result TransferResult
	err = o.step(ctx, stepTransfer, func() error {
		result, err = o.Transfers.Execute(ctx, kind, details)
		return err
	})
	a = a.WithTxHashes(result.Hashes()...)
	if err != nil {
		if result.MovedValue() {
			o.journalPartial(ctx, a, result, err)
		}
		return a, err
	}
	if a, err = o.advance(ctx, a, entities.AttemptFundsTransferred); err != nil {
		return a, err
	}

	record := &entities.TransactionRecord{
		AttemptID:   a.ID,
		UserID:      link.MerchantID,
		ProductID:   link.Product.ID,
		Hash:        result.SettlementHash(),
		Amount:      link.Product.Price,
		FromAddress: a.Payer,
		Timestamp:   o.now().UTC(),
	}
	var stored *entities.TransactionRecord
	err = o.settle(ctx, a.ID, entities.SettlementKindTransaction, record.Hash, record, func(ctx context.Context) (uuid.UUID, error) {
		stored, err = o.Recorder.RecordTransaction(ctx, record)
		if err != nil {
			return uuid.Nil, err
		}
		return stored.ID, nil
	})
	if err != nil {
		return a, err
	}
	return o.advance(ctx, a.WithRecord(stored.ID), entities.AttemptSettled)
}

// subscribe registers a recurring payment. No value moves now; the approval
// lets the merchant pull future payments.
func (o *PaymentOrchestrator) subscribe(ctx context.Context, a entities.Attempt, target entities.SettlementTarget, approval common.Hash) (entities.Attempt, error) {
	record := &entities.SubscriptionRecord{
		AttemptID:       a.ID,
		Address:         a.Payer,
		ProductID:       a.Link.Product.ID,
		TokenAddress:    a.Token.Address,
		TokenAmount:     FromBaseUnits(a.TokenAmount, a.Token.Decimals),
		MerchantAddress: target.Recipient,
		ChainID:         a.Token.ChainID,
	}
	if approval != (common.Hash{}) {
		a = a.WithTxHashes(approval)
	}

	var stored *entities.SubscriptionRecord
	err := o.settle(ctx, a.ID, entities.SettlementKindSubscription, approval, record, func(ctx context.Context) (uuid.UUID, error) {
		var err error
		stored, err = o.Recorder.RegisterSubscription(ctx, record)
		if err != nil {
			return uuid.Nil, err
		}
		return stored.ID, nil
	})
	if err != nil {
		return a, err
	}
	return o.advance(ctx, a.WithRecord(stored.ID), entities.AttemptSettled)
}

// settle journals the intended record, writes it and marks the journal entry.
// A failed write leaves the entry PENDING for the recovery job.
func (o *PaymentOrchestrator) settle(ctx context.Context, attemptID uuid.UUID, kind entities.SettlementKind, txHash common.Hash, record interface{}, write func(context.Context) (uuid.UUID, error)) error {
	// the journal must survive attempt cancellation
	journalCtx := context.WithoutCancel(ctx)

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", domainerrors.ErrSettlementPersistFailed, err)
	}
	journaled := true
	if err := o.Journal.Create(journalCtx, &entities.SettlementJournalEntry{
		AttemptID: attemptID,
		Kind:      kind,
		TxHash:    txHash,
		Payload:   payload,
	}); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return fmt.Errorf("%w: %w", domainerrors.ErrSettlementPersistFailed, err)
		}
		journaled = false
		logger.Error(ctx, "Failed to journal settlement", zap.Error(err))
	}

	step := stepSettle
	if kind == entities.SettlementKindSubscription {
		step = stepSubscribe
	}
	var recordID uuid.UUID
	err = o.step(ctx, step, func() error {
		recordID, err = write(ctx)
		return err
	})
	if err != nil {
		if journaled {
			if jerr := o.Journal.RecordFailure(journalCtx, attemptID, err.Error()); jerr != nil {
				logger.Error(ctx, "Failed to update settlement journal", zap.Error(jerr))
			}
		}
		return err
	}

	if journaled {
		if err := o.Journal.MarkSettled(journalCtx, attemptID); err != nil {
			logger.Warn(ctx, "Failed to mark settlement journal entry", zap.Error(err))
		}
	}
	logger.Info(ctx, "Settlement written", zap.String("kind", string(kind)), zap.String("record_id", recordID.String()))
	return nil
}

// journalPartial keeps the hashes of a transfer that failed after moving
// value so that the attempt can be reconciled by hand.
func (o *PaymentOrchestrator) journalPartial(ctx context.Context, a entities.Attempt, result TransferResult, cause error) {
	record := &entities.TransactionRecord{
		AttemptID:   a.ID,
		UserID:      a.Link.MerchantID,
		ProductID:   a.Link.Product.ID,
		Hash:        result.LastHash(),
		Amount:      a.Link.Product.Price,
		FromAddress: a.Payer,
		Timestamp:   o.now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		logger.Error(ctx, "Failed to encode partial transfer", zap.Error(err))
		return
	}
	if err := o.Journal.Create(context.WithoutCancel(ctx), &entities.SettlementJournalEntry{
		AttemptID: a.ID,
		Kind:      entities.SettlementKindTransaction,
		TxHash:    record.Hash,
		Payload:   payload,
		Status:    entities.SettlementJournalPartial,
		LastError: cause.Error(),
	}); err != nil {
		logger.Error(ctx, "Failed to journal partial transfer", zap.Stringer("tx_hashes", hashList(result.Hashes())), zap.Error(err))
		return
	}
	logger.Warn(ctx, "Partial transfer journaled", zap.Stringer("tx_hashes", hashList(result.Hashes())))
}

func (o *PaymentOrchestrator) advance(ctx context.Context, a entities.Attempt, next entities.AttemptState) (entities.Attempt, error) {
	out, err := a.Advance(next)
	if err != nil {
		return a, err
	}
	o.Metrics.AttemptTransition(string(a.State), string(next))
	logger.Info(ctx, "Attempt transition", zap.String("from", string(a.State)), zap.String("to", string(next)))
	return out, nil
}

func (o *PaymentOrchestrator) step(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: before %s: %w", domainerrors.ErrAttemptCancelled, name, err)
	}
	started := o.now()
	err := fn()
	o.Metrics.ObserveStep(name, o.now().Sub(started), err)
	return err
}

func (o *PaymentOrchestrator) target(link *entities.PaymentLink) entities.SettlementTarget {
	return entities.SettlementTarget{
		ChainID:   o.cfg.SettlementChainID,
		Token:     o.cfg.SettlementToken,
		Recipient: link.Merchant.SmartAccountAddress,
	}
}

func attemptLockKey(signer common.Address) string {
	return "attempt_lock:" + signer.Hex()
}

type hashList []common.Hash

func (h hashList) String() string {
	b, _ := json.Marshal([]common.Hash(h))
	return string(b)
}

// IsPaymentFailure reports whether err is a failure of the attempt itself
// rather than of the request that tried to start it.
func IsPaymentFailure(err error) bool {
	for _, kind := range []error{
		domainerrors.ErrChainUnavailable,
		domainerrors.ErrApprovalFailed,
		domainerrors.ErrNoRouteFound,
		domainerrors.ErrTransferRejected,
		domainerrors.ErrTransferReverted,
		domainerrors.ErrSettlementPersistFailed,
		domainerrors.ErrAttemptCancelled,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
