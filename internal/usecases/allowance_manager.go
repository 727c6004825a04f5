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

// AllowanceRequest describes the spending right a payment needs
type AllowanceRequest struct {
	Token    entities.TokenDescriptor
	Owner    common.Address
	Spender  common.Address
	Required *big.Int
	Policy   entities.PaymentMethod
	// SettlementFastPath is set for one-time payments already in the
	// settlement asset. Those move with a plain transfer and need no approval.
	SettlementFastPath bool
}

// AllowanceResult reports whether an approval was sent
type AllowanceResult struct {
	Approved bool
	TxHash   common.Hash
}

// AllowanceManager verifies and, when needed, raises ERC20 allowances
type AllowanceManager struct {
	wallet  Wallet
	timeout Timeouts
}

func NewAllowanceManager(wallet Wallet, timeouts Timeouts) *AllowanceManager {
	return &AllowanceManager{wallet: wallet, timeout: timeouts}
}

func (m *AllowanceManager) EnsureAllowance(ctx context.Context, req AllowanceRequest) (AllowanceResult, error) {
	if req.Token.IsNative() {
		return AllowanceResult{}, nil
	}

	allowance, err := readTyped[*big.Int](ctx, m.wallet, req.Token.Address, "allowance", req.Owner, req.Spender)
	if err != nil {
		return AllowanceResult{}, fmt.Errorf("%w: read allowance: %w", domainerrors.ErrApprovalFailed, err)
	}

	var amount *big.Int
	switch req.Policy {
	case entities.PaymentMethodRecurring:
		supply, err := readTyped[*big.Int](ctx, m.wallet, req.Token.Address, "totalSupply")
		if err != nil {
			return AllowanceResult{}, fmt.Errorf("%w: read totalSupply: %w", domainerrors.ErrApprovalFailed, err)
		}
		if allowance.Cmp(supply) >= 0 {
			return AllowanceResult{}, nil
		}
		amount = supply
	default:
		if req.SettlementFastPath || req.Required == nil || allowance.Cmp(req.Required) >= 0 {
			return AllowanceResult{}, nil
		}
		amount = req.Required
	}

	logger.Info(ctx, "Approving token spend",
		zap.String("token", req.Token.Key()),
		zap.String("spender", req.Spender.Hex()),
		zap.String("amount", amount.String()),
	)

	hash, err := m.approve(ctx, req.Token.Address, req.Spender, amount)
	if err != nil {
		return AllowanceResult{}, err
	}
	return AllowanceResult{Approved: true, TxHash: hash}, nil
}

func (m *AllowanceManager) approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	signCtx, cancel := withTimeout(ctx, m.timeout.Signer)
	hash, err := m.wallet.WriteContract(signCtx, blockchain.ContractCall{
		Address: token,
		ABI:     ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{spender, amount},
	})
	cancel()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: approve rejected: %w", domainerrors.ErrApprovalFailed, err)
	}

	waitCtx, cancel := withTimeout(ctx, m.timeout.Receipt)
	defer cancel()
	receipt, err := m.wallet.WaitForTransactionReceipt(waitCtx, hash)
	if err != nil {
		return hash, fmt.Errorf("%w: approve receipt %s: %w", domainerrors.ErrApprovalFailed, hash.Hex(), err)
	}
	if receipt == nil || !receipt.Success {
		return hash, fmt.Errorf("%w: approve %s reverted", domainerrors.ErrApprovalFailed, hash.Hex())
	}
	return hash, nil
}

// readTyped calls a view method and returns its first output as T
func readTyped[T any](ctx context.Context, wallet Wallet, address common.Address, method string, args ...interface{}) (T, error) {
	var zero T
	out, err := wallet.ReadContract(ctx, blockchain.ContractCall{
		Address: address,
		ABI:     ERC20ABI,
		Method:  method,
		Args:    args,
	})
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, fmt.Errorf("failed to decode %s", method)
	}
	value, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("invalid %s return type", method)
	}
	return value, nil
}
