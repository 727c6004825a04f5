package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/builders-garden/swifty/internal/domain/entities"
	"github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

// Mock Wallet
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Address() common.Address {
	return m.Called().Get(0).(common.Address)
}

func (m *MockWallet) ChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	return m.Called(ctx, chainID).Error(0)
}

func (m *MockWallet) AddChain(ctx context.Context, def entities.ChainDefinition) error {
	return m.Called(ctx, def).Error(0)
}

func (m *MockWallet) ReadContract(ctx context.Context, call blockchain.ContractCall) ([]interface{}, error) {
	args := m.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interface{}), args.Error(1)
}

func (m *MockWallet) WriteContract(ctx context.Context, call blockchain.ContractCall) (common.Hash, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockWallet) SendTransaction(ctx context.Context, req blockchain.TxRequest) (common.Hash, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockWallet) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Receipt), args.Error(1)
}

// method matches a ContractCall by ABI method name
func method(name string) interface{} {
	return mock.MatchedBy(func(call blockchain.ContractCall) bool { return call.Method == name })
}

// Mock ChainLookup
type MockChainLookup struct {
	mock.Mock
}

func (m *MockChainLookup) Lookup(chainID uint64) (entities.ChainDefinition, bool) {
	args := m.Called(chainID)
	return args.Get(0).(entities.ChainDefinition), args.Bool(1)
}

// Mock Aggregator
type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Route), args.Error(1)
}

// Mock PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (decimal.Decimal, error) {
	args := m.Called(ctx, chainID, token)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// Mock SettlementAPI
type MockSettlementAPI struct {
	mock.Mock
}

func (m *MockSettlementAPI) RecordTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockSettlementAPI) RegisterSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SubscriptionRecord), args.Error(1)
}

// Mock AttemptLocker
type MockAttemptLocker struct {
	mock.Mock
}

func (m *MockAttemptLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptLocker) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// memoryLocker is an in-process AttemptLocker that records acquired keys
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func (l *memoryLocker) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

func (l *memoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Mock PaymentLinkRepository
type MockPaymentLinkRepository struct {
	mock.Mock
}

func (m *MockPaymentLinkRepository) Create(ctx context.Context, link *entities.PaymentLink) error {
	return m.Called(ctx, link).Error(0)
}

func (m *MockPaymentLinkRepository) GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentLink), args.Error(1)
}

// Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

// Mock TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, record *entities.TransactionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockTransactionRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) GetByHash(ctx context.Context, hash common.Hash) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter repositories.TransactionFilter, limit, offset int) ([]*entities.TransactionRecord, int64, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.TransactionRecord), args.Get(1).(int64), args.Error(2)
}

// Mock SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, record *entities.SubscriptionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockSubscriptionRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SubscriptionRecord, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionRepository) ListByMerchantAddress(ctx context.Context, merchant common.Address, limit, offset int) ([]*entities.SubscriptionRecord, int64, error) {
	args := m.Called(ctx, merchant, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.SubscriptionRecord), args.Get(1).(int64), args.Error(2)
}

// Mock SettlementJournalRepository
type MockSettlementJournalRepository struct {
	mock.Mock
}

func (m *MockSettlementJournalRepository) Create(ctx context.Context, entry *entities.SettlementJournalEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockSettlementJournalRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*entities.SettlementJournalEntry, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementJournalEntry), args.Error(1)
}

func (m *MockSettlementJournalRepository) ListPending(ctx context.Context, limit int) ([]*entities.SettlementJournalEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SettlementJournalEntry), args.Error(1)
}

func (m *MockSettlementJournalRepository) MarkSettled(ctx context.Context, attemptID uuid.UUID) error {
	return m.Called(ctx, attemptID).Error(0)
}

func (m *MockSettlementJournalRepository) RecordFailure(ctx context.Context, attemptID uuid.UUID, reason string) error {
	return m.Called(ctx, attemptID, reason).Error(0)
}
