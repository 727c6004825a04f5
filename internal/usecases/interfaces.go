package usecases

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/builders-garden/swifty/internal/domain/entities"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
)

// Wallet is the connected signer the engine drives
type Wallet interface {
	Address() common.Address
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, def entities.ChainDefinition) error
	ReadContract(ctx context.Context, call blockchain.ContractCall) ([]interface{}, error)
	WriteContract(ctx context.Context, call blockchain.ContractCall) (common.Hash, error)
	SendTransaction(ctx context.Context, req blockchain.TxRequest) (common.Hash, error)
	WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error)
}

// ChainLookup resolves chain definitions for AddChain
type ChainLookup interface {
	Lookup(chainID uint64) (entities.ChainDefinition, bool)
}

// Aggregator quotes executable routes between assets
type Aggregator interface {
	Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error)
}

// PriceOracle returns the USD price of one whole token
type PriceOracle interface {
	TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (decimal.Decimal, error)
}

// SettlementAPI is the backend write API for settlement records
type SettlementAPI interface {
	RecordTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error)
	RegisterSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, error)
}

// AttemptLocker serializes attempts that share a signer
type AttemptLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Timeouts bounds each network call of an attempt
type Timeouts struct {
	ChainSwitch time.Duration
	Aggregator  time.Duration
	Price       time.Duration
	Signer      time.Duration
	Receipt     time.Duration
	Settlement  time.Duration
	Attempt     time.Duration
}

// withTimeout derives a bounded context; a zero duration keeps ctx as is
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
