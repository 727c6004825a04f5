package usecases_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
	"github.com/builders-garden/swifty/internal/usecases"
)

type orchestratorHarness struct {
	wallet  *MockWallet
	links   *MockPaymentLinkRepository
	journal *MockSettlementJournalRepository
	agg     *MockAggregator
	oracle  *MockPriceOracle
	api     *MockSettlementAPI
	locker  *MockAttemptLocker
	chains  *MockChainLookup
	o       *usecases.PaymentOrchestrator
}

func newHarness(settlementToken common.Address, opts ...func(*usecases.OrchestratorDeps)) *orchestratorHarness {
	h := &orchestratorHarness{
		wallet:  new(MockWallet),
		links:   new(MockPaymentLinkRepository),
		journal: new(MockSettlementJournalRepository),
		agg:     new(MockAggregator),
		oracle:  new(MockPriceOracle),
		api:     new(MockSettlementAPI),
		locker:  new(MockAttemptLocker),
		chains:  new(MockChainLookup),
	}
	timeouts := usecases.Timeouts{Attempt: time.Minute}
	adapter := usecases.NewChainAdapter(h.wallet, h.chains, timeouts)
	allowances := usecases.NewAllowanceManager(h.wallet, timeouts)
	deps := usecases.OrchestratorDeps{
		Links:      h.links,
		Journal:    h.journal,
		Wallet:     h.wallet,
		Chains:     adapter,
		Allowances: allowances,
		Routes:     usecases.NewRouteResolver(h.agg, timeouts),
		Transfers:  usecases.NewValueTransferExecutor(h.wallet, adapter, allowances, timeouts),
		Recorder:   usecases.NewSettlementRecorder(h.api, timeouts),
		Amounts:    usecases.NewTokenAmountCalculator(h.oracle, timeouts),
		Locker:     h.locker,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.o = usecases.NewPaymentOrchestrator(deps, usecases.OrchestratorConfig{
		SettlementChainID: entities.ChainIDBase,
		SettlementToken:   settlementToken,
		Router:            testRouter,
		LockTTL:           time.Minute,
		Timeouts:          timeouts,
	})

	h.wallet.On("Address").Return(testOwner)
	h.locker.On("Acquire", mock.Anything, mock.Anything, time.Minute).Return(true, nil)
	h.locker.On("Release", mock.Anything, mock.Anything).Return(nil)
	h.journal.On("GetByAttemptID", mock.Anything, mock.Anything).Return(nil, domainerrors.ErrNotFound)
	h.journal.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.journal.On("MarkSettled", mock.Anything, mock.Anything).Return(nil)
	h.journal.On("RecordFailure", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return h
}

func newLink(methodType entities.PaymentMethod, price string) *entities.PaymentLink {
	merchant := &entities.User{
		ID:                  uuid.New(),
		Address:             common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		SmartAccountAddress: testMerchantAccount,
	}
	return &entities.PaymentLink{
		ID:         uuid.New(),
		Slug:       "coffee",
		MerchantID: merchant.ID,
		Merchant:   merchant,
		Product: entities.Product{
			ID:            uuid.New(),
			Name:          "Coffee",
			Price:         decimal.RequireFromString(price),
			PaymentMethod: methodType,
		},
	}
}

func ethOn(chainID uint64) entities.TokenDescriptor {
	for _, tok := range entities.OneTimeTokens {
		if tok.ChainID == chainID && tok.IsNative() {
			return tok
		}
	}
	panic("no eth")
}

func states(a entities.Attempt) []entities.AttemptState {
	return a.History
}

// Scenario 1: native ETH on the settlement chain, $10 one-time
func TestPaymentOrchestrator_NativeOnSettlementChain(t *testing.T) {
	h := newHarness(entities.NativeTokenAddress)
	link := newLink(entities.PaymentMethodOneTime, "10.00")
	token := ethOn(entities.ChainIDBase)
	txHash := common.HexToHash("0xbeef")
	recordID := uuid.New()

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, entities.ChainIDBase, entities.NativeTokenAddress).Return(decimal.NewFromInt(2500), nil)
	h.wallet.On("SendTransaction", mock.Anything, blockchain.TxRequest{To: testMerchantAccount, Value: big.NewInt(4e15)}).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)

	var recorded *entities.TransactionRecord
	h.api.On("RecordTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*entities.TransactionRecord) }).
		Return(&entities.TransactionRecord{ID: recordID, Hash: txHash}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	require.NoError(t, err)

	assert.Equal(t, entities.AttemptSettled, attempt.State)
	assert.Equal(t, []entities.AttemptState{
		entities.AttemptIdle, entities.AttemptChainReady, entities.AttemptAllowanceReady,
		entities.AttemptFundsTransferred, entities.AttemptSettled,
	}, states(attempt))
	require.NotNil(t, attempt.RecordID)
	assert.Equal(t, recordID, *attempt.RecordID)
	assert.Equal(t, uuid.Version(7), attempt.ID.Version())

	require.NotNil(t, recorded)
	assert.Equal(t, "10", recorded.Amount.String())
	assert.Equal(t, txHash, recorded.Hash)
	assert.Equal(t, testOwner, recorded.FromAddress)
	assert.Equal(t, link.MerchantID, recorded.UserID)
	assert.Equal(t, attempt.ID, recorded.AttemptID)

	h.wallet.AssertNotCalled(t, "SwitchChain", mock.Anything, mock.Anything)
	h.wallet.AssertNotCalled(t, "ReadContract", mock.Anything, mock.Anything)
	h.agg.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	h.journal.AssertCalled(t, "MarkSettled", mock.Anything, attempt.ID)
	h.locker.AssertCalled(t, "Release", mock.Anything, mock.Anything)
}

// Scenario 2: ERC20 on another chain, $25, no allowance yet
func TestPaymentOrchestrator_RoutedERC20(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	link := newLink(entities.PaymentMethodOneTime, "25")
	token := usdcOn(entities.ChainIDOptimism)
	amount := big.NewInt(25_000_000)
	stepHash := common.HexToHash("0x5e")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil).Once()
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDOptimism, nil)
	h.wallet.On("SwitchChain", mock.Anything, entities.ChainIDOptimism).Return(nil).Once()
	h.oracle.On("TokenPriceUSD", mock.Anything, entities.ChainIDOptimism, token.Address).Return(decimal.NewFromInt(1), nil)
	h.wallet.On("ReadContract", mock.Anything, method("allowance")).Return([]interface{}{big.NewInt(0)}, nil)
	h.wallet.On("WriteContract", mock.Anything, approveWith(amount)).Return(approveTx, nil).Once()
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, approveTx).Return(okReceipt(approveTx), nil)
	h.agg.On("Quote", mock.Anything, entities.RouteRequest{
		PayerAddress:      testOwner,
		SettlementAddress: testMerchantAccount,
		SourceChainID:     entities.ChainIDOptimism,
		SourceToken:       token.Address,
		SourceAmount:      amount,
		DestChainID:       entities.ChainIDBase,
		DestToken:         entities.BaseUSDCAddress,
	}).Return(&entities.Route{ID: "route-1", Steps: []entities.RouteStep{
		{ID: "bridge", ChainID: entities.ChainIDOptimism, To: testRouter.Hex(), Data: []byte{0xca, 0xfe}},
	}}, nil)
	h.wallet.On("SendTransaction", mock.Anything, blockchain.TxRequest{To: testRouter, Data: []byte{0xca, 0xfe}}).Return(stepHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, stepHash).Return(okReceipt(stepHash), nil)
	h.api.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(r *entities.TransactionRecord) bool {
		return r.Hash == stepHash && r.Amount.Equal(decimal.NewFromInt(25))
	})).Return(&entities.TransactionRecord{ID: uuid.New(), Hash: stepHash}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	require.NoError(t, err)

	assert.Equal(t, []entities.AttemptState{
		entities.AttemptIdle, entities.AttemptChainReady, entities.AttemptAllowanceReady,
		entities.AttemptRouteResolved, entities.AttemptFundsTransferred, entities.AttemptSettled,
	}, states(attempt))
	assert.Equal(t, []common.Hash{stepHash}, attempt.TxHashes)
	assert.Equal(t, amount, attempt.TokenAmount)
	h.wallet.AssertExpectations(t)
	h.agg.AssertExpectations(t)
	h.api.AssertExpectations(t)
}

// Scenario 3: recurring $5 registers a subscription without moving value
func TestPaymentOrchestrator_RecurringSubscription(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	link := newLink(entities.PaymentMethodRecurring, "5")
	token := usdcOn(entities.ChainIDBase)
	supply := big.NewInt(1_000_000_000_000_000)

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, entities.ChainIDBase, token.Address).Return(decimal.NewFromInt(1), nil)
	h.wallet.On("ReadContract", mock.Anything, method("allowance")).Return([]interface{}{big.NewInt(0)}, nil)
	h.wallet.On("ReadContract", mock.Anything, method("totalSupply")).Return([]interface{}{supply}, nil)
	h.wallet.On("WriteContract", mock.Anything, approveWith(supply)).Return(approveTx, nil).Once()
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, approveTx).Return(okReceipt(approveTx), nil)

	var registered *entities.SubscriptionRecord
	h.api.On("RegisterSubscription", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { registered = args.Get(1).(*entities.SubscriptionRecord) }).
		Return(&entities.SubscriptionRecord{ID: uuid.New()}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	require.NoError(t, err)

	assert.Equal(t, []entities.AttemptState{
		entities.AttemptIdle, entities.AttemptChainReady, entities.AttemptAllowanceReady, entities.AttemptSettled,
	}, states(attempt))
	require.NotNil(t, registered)
	assert.True(t, registered.TokenAmount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, testMerchantAccount, registered.MerchantAddress)
	assert.Equal(t, entities.ChainIDBase, registered.ChainID)
	assert.Equal(t, testOwner, registered.Address)

	h.api.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
	h.wallet.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	h.wallet.AssertNotCalled(t, "WriteContract", mock.Anything, method("transfer"))
	h.agg.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_SettlementAssetSkipsRoute(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	link := newLink(entities.PaymentMethodOneTime, "10")
	token := usdcOn(entities.ChainIDBase)
	txHash := common.HexToHash("0x77")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, entities.ChainIDBase, token.Address).Return(decimal.NewFromInt(1), nil)
	h.wallet.On("ReadContract", mock.Anything, method("allowance")).Return([]interface{}{big.NewInt(0)}, nil)
	h.wallet.On("WriteContract", mock.Anything, method("transfer")).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)
	h.api.On("RecordTransaction", mock.Anything, mock.Anything).Return(&entities.TransactionRecord{ID: uuid.New()}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	require.NoError(t, err)
	assert.Equal(t, entities.AttemptSettled, attempt.State)

	h.agg.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	h.wallet.AssertNotCalled(t, "WriteContract", mock.Anything, method("approve"))
}

func TestPaymentOrchestrator_FailedReceipt(t *testing.T) {
	h := newHarness(entities.NativeTokenAddress)
	link := newLink(entities.PaymentMethodOneTime, "10")
	txHash := common.HexToHash("0xdead")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
	h.wallet.On("SendTransaction", mock.Anything, mock.Anything).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(&entities.Receipt{Hash: txHash, Success: false}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
	assert.ErrorIs(t, err, domainerrors.ErrTransferReverted)
	assert.Equal(t, entities.AttemptFailed, attempt.State)
	assert.Equal(t, "TransferReverted", attempt.Reason)

	h.api.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
	h.journal.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_ZeroRouteSteps(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	link := newLink(entities.PaymentMethodOneTime, "25")
	token := usdcOn(entities.ChainIDArbitrum)

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDArbitrum, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(1), nil)
	h.wallet.On("ReadContract", mock.Anything, method("allowance")).Return([]interface{}{big.NewInt(1_000_000_000)}, nil)
	h.agg.On("Quote", mock.Anything, mock.Anything).Return(&entities.Route{ID: "empty"}, nil)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	assert.ErrorIs(t, err, domainerrors.ErrNoRouteFound)
	assert.Equal(t, entities.AttemptFailed, attempt.State)
	assert.Equal(t, "NoRouteFound", attempt.Reason)

	h.wallet.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	h.wallet.AssertNotCalled(t, "WriteContract", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_SettlementPersistFailureKeepsJournal(t *testing.T) {
	h := newHarness(entities.NativeTokenAddress)
	link := newLink(entities.PaymentMethodOneTime, "10")
	txHash := common.HexToHash("0xfeed")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
	h.wallet.On("SendTransaction", mock.Anything, mock.Anything).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)
	h.api.On("RecordTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("backend 503"))

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
	assert.ErrorIs(t, err, domainerrors.ErrSettlementPersistFailed)
	assert.Equal(t, "SettlementPersistFailed", attempt.Reason)
	assert.Equal(t, []common.Hash{txHash}, attempt.TxHashes)

	h.journal.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *entities.SettlementJournalEntry) bool {
		return e.AttemptID == attempt.ID && e.TxHash == txHash && e.Kind == entities.SettlementKindTransaction
	}))
	h.journal.AssertCalled(t, "RecordFailure", mock.Anything, attempt.ID, mock.Anything)
	h.journal.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_RejectsBeforeStarting(t *testing.T) {
	t.Run("unknown link", func(t *testing.T) {
		h := newHarness(entities.BaseUSDCAddress)
		h.links.On("GetBySlug", mock.Anything, "missing").Return(nil, domainerrors.ErrNotFound)
		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "missing"})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("identity required", func(t *testing.T) {
		h := newHarness(entities.BaseUSDCAddress)
		link := newLink(entities.PaymentMethodOneTime, "10")
		link.RequiresIdentityVerification = true
		h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)

		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: usdcOn(entities.ChainIDBase).Key()})
		assert.ErrorIs(t, err, domainerrors.ErrIdentityNotVerified)
		h.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed key", func(t *testing.T) {
		h := newHarness(entities.BaseUSDCAddress)
		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)
		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: "USDC-0xnothex-8453-6"})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidSelectionKey)
	})

	t.Run("native for recurring", func(t *testing.T) {
		h := newHarness(entities.BaseUSDCAddress)
		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodRecurring, "5"), nil)
		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
		assert.ErrorIs(t, err, domainerrors.ErrUnsupportedToken)
	})
}

func TestPaymentOrchestrator_LockContention(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	h.locker.ExpectedCalls = nil
	h.locker.On("Acquire", mock.Anything, mock.Anything, time.Minute).Return(false, nil)
	h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)

	_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: usdcOn(entities.ChainIDBase).Key()})
	assert.ErrorIs(t, err, domainerrors.ErrAttemptInProgress)
	h.wallet.AssertNotCalled(t, "ChainID", mock.Anything)
	h.locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_Cancel(t *testing.T) {
	h := newHarness(entities.NativeTokenAddress)
	link := newLink(entities.PaymentMethodOneTime, "10")
	txHash := common.HexToHash("0xc0")
	attemptID := uuid.Must(uuid.NewV7())

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
	h.wallet.On("SendTransaction", mock.Anything, mock.Anything).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).
		Run(func(mock.Arguments) { require.NoError(t, h.o.Cancel(attemptID)) }).
		Return(nil, context.Canceled)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{
		Slug:         "coffee",
		SelectionKey: ethOn(entities.ChainIDBase).Key(),
		AttemptID:    &attemptID,
	})
	assert.ErrorIs(t, err, domainerrors.ErrAttemptCancelled)
	assert.Equal(t, attemptID, attempt.ID)
	assert.Equal(t, entities.AttemptFailed, attempt.State)
	assert.Equal(t, "AttemptCancelled", attempt.Reason)
	h.api.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)

	assert.ErrorIs(t, h.o.Cancel(attemptID), domainerrors.ErrNotFound, "finished attempts are no longer cancellable")
}

func TestIsPaymentFailure(t *testing.T) {
	assert.True(t, usecases.IsPaymentFailure(domainerrors.ErrTransferReverted))
	assert.True(t, usecases.IsPaymentFailure(domainerrors.ErrAttemptCancelled))
	assert.False(t, usecases.IsPaymentFailure(domainerrors.ErrNotFound))
	assert.False(t, usecases.IsPaymentFailure(errors.New("other")))
}

func TestPaymentOrchestrator_RetryAfterPersistFailureDoesNotResend(t *testing.T) {
	h := newHarness(entities.NativeTokenAddress)
	link := newLink(entities.PaymentMethodOneTime, "10")
	txHash := common.HexToHash("0xfade")
	attemptID := uuid.Must(uuid.NewV7())

	var journaled *entities.SettlementJournalEntry
	h.journal.ExpectedCalls = nil
	h.journal.On("GetByAttemptID", mock.Anything, attemptID).Return(nil, domainerrors.ErrNotFound).Once()
	h.journal.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { journaled = args.Get(1).(*entities.SettlementJournalEntry) }).
		Return(nil).Once()
	h.journal.On("RecordFailure", mock.Anything, attemptID, mock.Anything).Return(nil)

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
	h.wallet.On("SendTransaction", mock.Anything, mock.Anything).Return(txHash, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)
	h.api.On("RecordTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("backend 503"))

	in := usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key(), AttemptID: &attemptID}
	_, err := h.o.Pay(context.Background(), in)
	require.ErrorIs(t, err, domainerrors.ErrSettlementPersistFailed)
	require.NotNil(t, journaled)

	h.journal.On("GetByAttemptID", mock.Anything, attemptID).Return(journaled, nil)
	_, err = h.o.Pay(context.Background(), in)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
	assert.False(t, usecases.IsPaymentFailure(err))

	h.wallet.AssertNumberOfCalls(t, "SendTransaction", 1)
	h.api.AssertNumberOfCalls(t, "RecordTransaction", 1)
	h.journal.AssertNumberOfCalls(t, "Create", 1)
}

func TestPaymentOrchestrator_JournalChecks(t *testing.T) {
	t.Run("journal read error stops before the chain", func(t *testing.T) {
		h := newHarness(entities.NativeTokenAddress)
		h.journal.ExpectedCalls = nil
		h.journal.On("GetByAttemptID", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)

		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
		assert.Error(t, err)
		h.wallet.AssertNotCalled(t, "ChainID", mock.Anything)
		h.locker.AssertCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("duplicate journal entry is not written twice", func(t *testing.T) {
		h := newHarness(entities.NativeTokenAddress)
		txHash := common.HexToHash("0xd0")
		h.journal.ExpectedCalls = nil
		h.journal.On("GetByAttemptID", mock.Anything, mock.Anything).Return(nil, domainerrors.ErrNotFound)
		h.journal.On("Create", mock.Anything, mock.Anything).Return(domainerrors.ErrAlreadyExists)

		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)
		h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
		h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
		h.wallet.On("SendTransaction", mock.Anything, mock.Anything).Return(txHash, nil)
		h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)

		attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
		assert.ErrorIs(t, err, domainerrors.ErrSettlementPersistFailed)
		assert.Equal(t, "SettlementPersistFailed", attempt.Reason)
		h.api.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
	})
}

func TestPaymentOrchestrator_SerializesAttemptsPerSigner(t *testing.T) {
	locker := newMemoryLocker()
	h := newHarness(entities.NativeTokenAddress, func(d *usecases.OrchestratorDeps) { d.Locker = locker })
	coffee := newLink(entities.PaymentMethodOneTime, "10")
	tea := newLink(entities.PaymentMethodOneTime, "4")
	tea.Slug = "tea"
	txHash := common.HexToHash("0x5151")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(coffee, nil)
	h.links.On("GetBySlug", mock.Anything, "tea").Return(tea, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)

	sending := make(chan struct{})
	proceed := make(chan struct{})
	h.wallet.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(sending)
			<-proceed
		}).
		Return(txHash, nil).Once()
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, txHash).Return(okReceipt(txHash), nil)
	h.api.On("RecordTransaction", mock.Anything, mock.Anything).Return(&entities.TransactionRecord{ID: uuid.New()}, nil)

	key := ethOn(entities.ChainIDBase).Key()
	done := make(chan error, 1)
	go func() {
		_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: key})
		done <- err
	}()

	<-sending
	_, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "tea", SelectionKey: key})
	assert.ErrorIs(t, err, domainerrors.ErrAttemptInProgress)

	close(proceed)
	require.NoError(t, <-done)

	h.wallet.AssertNumberOfCalls(t, "SendTransaction", 1)
	assert.Equal(t, []string{"attempt_lock:" + testOwner.Hex(), "attempt_lock:" + testOwner.Hex()}, locker.Keys())
	assert.Zero(t, locker.Held())
}

func TestPaymentOrchestrator_JournalsPartialRoute(t *testing.T) {
	h := newHarness(entities.BaseUSDCAddress)
	link := newLink(entities.PaymentMethodOneTime, "25")
	token := ethOn(entities.ChainIDOptimism)
	h1, h2 := common.HexToHash("0x61"), common.HexToHash("0x62")

	h.links.On("GetBySlug", mock.Anything, "coffee").Return(link, nil)
	h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDOptimism, nil)
	h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(2500), nil)
	h.agg.On("Quote", mock.Anything, mock.Anything).Return(&entities.Route{ID: "two-step", Steps: []entities.RouteStep{
		{ID: "swap", ChainID: entities.ChainIDOptimism, To: testRouter.Hex(), Data: []byte{0x01}},
		{ID: "bridge", ChainID: entities.ChainIDOptimism, To: testRouter.Hex(), Data: []byte{0x02}},
	}}, nil)
	h.wallet.On("SendTransaction", mock.Anything, blockchain.TxRequest{To: testRouter, Data: []byte{0x01}}).Return(h1, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, h1).Return(okReceipt(h1), nil)
	h.wallet.On("SendTransaction", mock.Anything, blockchain.TxRequest{To: testRouter, Data: []byte{0x02}}).Return(h2, nil)
	h.wallet.On("WaitForTransactionReceipt", mock.Anything, h2).Return(nil, context.DeadlineExceeded)

	attempt, err := h.o.Pay(context.Background(), usecases.PayInput{Slug: "coffee", SelectionKey: token.Key()})
	assert.ErrorIs(t, err, domainerrors.ErrTransferReverted)
	assert.Equal(t, entities.AttemptFailed, attempt.State)
	assert.Equal(t, []common.Hash{h1, h2}, attempt.TxHashes)

	h.journal.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(e *entities.SettlementJournalEntry) bool {
		return e.AttemptID == attempt.ID &&
			e.Status == entities.SettlementJournalPartial &&
			e.TxHash == h2 &&
			e.LastError != ""
	}))
	h.api.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
	h.journal.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything)
}

func TestPaymentOrchestrator_ContextEndsBetweenSteps(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(entities.NativeTokenAddress)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)
		h.wallet.On("ChainID", mock.Anything).Return(entities.ChainIDBase, nil)
		h.oracle.On("TokenPriceUSD", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(decimal.NewFromInt(2500), nil)

		attempt, err := h.o.Pay(ctx, usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
		assert.ErrorIs(t, err, domainerrors.ErrAttemptCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, usecases.IsPaymentFailure(err))
		assert.Equal(t, "AttemptCancelled", attempt.Reason)
		assert.Equal(t, http.StatusUnprocessableEntity, domainerrors.FromPaymentError(err).Status)
		h.wallet.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	})

	t.Run("deadline", func(t *testing.T) {
		h := newHarness(entities.NativeTokenAddress)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		h.links.On("GetBySlug", mock.Anything, "coffee").Return(newLink(entities.PaymentMethodOneTime, "10"), nil)

		attempt, err := h.o.Pay(ctx, usecases.PayInput{Slug: "coffee", SelectionKey: ethOn(entities.ChainIDBase).Key()})
		assert.ErrorIs(t, err, domainerrors.ErrAttemptCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, entities.AttemptFailed, attempt.State)
		assert.Equal(t, "AttemptCancelled", attempt.Reason)
		h.wallet.AssertNotCalled(t, "ChainID", mock.Anything)
	})
}
