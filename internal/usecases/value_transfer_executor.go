package usecases

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
	"github.com/builders-garden/swifty/pkg/logger"
)

// TransferKind selects how value moves to the merchant
type TransferKind string

const (
	TransferDirect TransferKind = "DIRECT_TRANSFER"
	TransferRouted TransferKind = "ROUTED"
)

// TransferDetails carries the inputs of either transfer kind
type TransferDetails struct {
	Token     entities.TokenDescriptor
	Recipient common.Address
	Amount    *big.Int
	Route     *entities.Route
}

// TransferResult holds one receipt per confirmed transaction. Unconfirmed
// is set when a submitted transaction's receipt never arrived.
type TransferResult struct {
	Receipts    []entities.Receipt
	Unconfirmed common.Hash
}

// SettlementHash is the hash of the last confirmed transaction
func (r TransferResult) SettlementHash() common.Hash {
	if len(r.Receipts) == 0 {
		return common.Hash{}
	}
	return r.Receipts[len(r.Receipts)-1].Hash
}

// LastHash is the hash of the last transaction that may have moved value
func (r TransferResult) LastHash() common.Hash {
	if r.Unconfirmed != (common.Hash{}) {
		return r.Unconfirmed
	}
	return r.SettlementHash()
}

// Hashes lists every confirmed transaction hash in order, followed by the
// unconfirmed one if any
func (r TransferResult) Hashes() []common.Hash {
	out := make([]common.Hash, 0, len(r.Receipts)+1)
	for _, rc := range r.Receipts {
		out = append(out, rc.Hash)
	}
	if r.Unconfirmed != (common.Hash{}) {
		out = append(out, r.Unconfirmed)
	}
	return out
}

// MovedValue reports whether any transaction was confirmed or left pending
func (r TransferResult) MovedValue() bool {
	return len(r.Receipts) > 0 || r.Unconfirmed != (common.Hash{})
}

// ValueTransferExecutor submits the value moving transactions
type ValueTransferExecutor struct {
	wallet     Wallet
	chains     *ChainAdapter
	allowances *AllowanceManager
	timeout    Timeouts
}

func NewValueTransferExecutor(wallet Wallet, chains *ChainAdapter, allowances *AllowanceManager, timeouts Timeouts) *ValueTransferExecutor {
	return &ValueTransferExecutor{wallet: wallet, chains: chains, allowances: allowances, timeout: timeouts}
}

func (e *ValueTransferExecutor) Execute(ctx context.Context, kind TransferKind, details TransferDetails) (TransferResult, error) {
	switch kind {
	case TransferDirect:
		return e.direct(ctx, details)
	case TransferRouted:
		return e.routed(ctx, details)
	}
	return TransferResult{}, fmt.Errorf("%w: unknown transfer kind %q", domainerrors.ErrTransferRejected, kind)
}

func (e *ValueTransferExecutor) direct(ctx context.Context, d TransferDetails) (TransferResult, error) {
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return TransferResult{}, fmt.Errorf("%w: non-positive amount", domainerrors.ErrTransferRejected)
	}

	hash, err := e.submit(ctx, func(ctx context.Context) (common.Hash, error) {
		if d.Token.IsNative() {
			return e.wallet.SendTransaction(ctx, blockchain.TxRequest{To: d.Recipient, Value: d.Amount})
		}
		return e.wallet.WriteContract(ctx, blockchain.ContractCall{
			Address: d.Token.Address,
			ABI:     ERC20ABI,
			Method:  "transfer",
			Args:    []interface{}{d.Recipient, d.Amount},
		})
	})
	if err != nil {
		return TransferResult{}, err
	}

	receipt, err := e.confirm(ctx, hash)
	if err != nil {
		if receipt == nil {
			return TransferResult{Unconfirmed: hash}, err
		}
		return TransferResult{}, err
	}
	logger.Info(ctx, "Direct transfer confirmed",
		zap.String("tx_hash", hash.Hex()),
		zap.String("token", d.Token.Key()),
		zap.String("amount", d.Amount.String()),
	)
	return TransferResult{Receipts: []entities.Receipt{*receipt}}, nil
}

// routed executes every step in order, stopping at the first failure.
// Each step first gets the allowance it spends.
func (e *ValueTransferExecutor) routed(ctx context.Context, d TransferDetails) (TransferResult, error) {
	if d.Route == nil || len(d.Route.Steps) == 0 {
		return TransferResult{}, fmt.Errorf("%w: route has no steps", domainerrors.ErrNoRouteFound)
	}

	var result TransferResult
	for i, step := range d.Route.Steps {
		if err := e.chains.EnsureChain(ctx, step.ChainID); err != nil {
			return result, err
		}
		if err := e.approveStep(ctx, step); err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}

		hash, err := e.submit(ctx, func(ctx context.Context) (common.Hash, error) {
			return e.wallet.SendTransaction(ctx, blockchain.TxRequest{
				To:       step.ToAddress(),
				Value:    step.Value,
				Data:     step.Data,
				GasLimit: step.GasLimit,
			})
		})
		if err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}

		receipt, err := e.confirm(ctx, hash)
		if err != nil {
			if receipt == nil {
				result.Unconfirmed = hash
			}
			return result, fmt.Errorf("step %d: %w", i, err)
		}
		result.Receipts = append(result.Receipts, *receipt)

		logger.Info(ctx, "Route step confirmed",
			zap.Int("step", i),
			zap.String("tool", step.Tool),
			zap.Uint64("chain_id", step.ChainID),
			zap.String("tx_hash", hash.Hex()),
		)
	}
	return result, nil
}

// approveStep lets the step's contract spend the ERC20 the step sells
func (e *ValueTransferExecutor) approveStep(ctx context.Context, step entities.RouteStep) error {
	if step.ApprovalAddress == nil || step.FromAmount == nil || step.FromAmount.Sign() <= 0 {
		return nil
	}
	token := entities.TokenDescriptor{ChainID: step.ChainID, Address: step.FromToken}
	if token.IsNative() {
		return nil
	}
	_, err := e.allowances.EnsureAllowance(ctx, AllowanceRequest{
		Token:    token,
		Owner:    e.wallet.Address(),
		Spender:  *step.ApprovalAddress,
		Required: step.FromAmount,
		Policy:   entities.PaymentMethodOneTime,
	})
	return err
}

func (e *ValueTransferExecutor) submit(ctx context.Context, send func(context.Context) (common.Hash, error)) (common.Hash, error) {
	ctx, cancel := withTimeout(ctx, e.timeout.Signer)
	defer cancel()
	hash, err := send(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", domainerrors.ErrTransferRejected, err)
	}
	return hash, nil
}

// confirm returns a nil receipt only when the receipt never arrived
func (e *ValueTransferExecutor) confirm(ctx context.Context, hash common.Hash) (*entities.Receipt, error) {
	ctx, cancel := withTimeout(ctx, e.timeout.Receipt)
	defer cancel()
	receipt, err := e.wallet.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %w", domainerrors.ErrTransferReverted, hash.Hex(), err)
	}
	if receipt == nil {
		receipt = &entities.Receipt{Hash: hash}
	}
	if !receipt.Success {
		return receipt, fmt.Errorf("%w: %s", domainerrors.ErrTransferReverted, hash.Hex())
	}
	return receipt, nil
}
