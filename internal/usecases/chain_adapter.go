package usecases

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/blockchain"
	"github.com/builders-garden/swifty/pkg/logger"
)

// ChainAdapter brings the wallet onto a target chain
type ChainAdapter struct {
	wallet  Wallet
	chains  ChainLookup
	timeout Timeouts
}

func NewChainAdapter(wallet Wallet, chains ChainLookup, timeouts Timeouts) *ChainAdapter {
	return &ChainAdapter{wallet: wallet, chains: chains, timeout: timeouts}
}

// EnsureChain is a no-op when the wallet already is on chainID. Otherwise it
// switches, registering the chain first when the wallet does not know it.
func (a *ChainAdapter) EnsureChain(ctx context.Context, chainID uint64) error {
	ctx, cancel := withTimeout(ctx, a.timeout.ChainSwitch)
	defer cancel()

	current, err := a.wallet.ChainID(ctx)
	if err == nil && current == chainID {
		return nil
	}

	err = a.wallet.SwitchChain(ctx, chainID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, blockchain.ErrUnrecognizedChain) {
		return fmt.Errorf("%w: switch to %d: %w", domainerrors.ErrChainUnavailable, chainID, err)
	}

	def, ok := a.chains.Lookup(chainID)
	if !ok {
		return fmt.Errorf("%w: no definition for chain %d", domainerrors.ErrChainUnavailable, chainID)
	}
	logger.Info(ctx, "Adding chain to wallet", zap.Uint64("chain_id", chainID), zap.String("chain", def.Name))
	if err := a.wallet.AddChain(ctx, def); err != nil {
		return fmt.Errorf("%w: add chain %d: %w", domainerrors.ErrChainUnavailable, chainID, err)
	}
	if err := a.wallet.SwitchChain(ctx, chainID); err != nil {
		return fmt.Errorf("%w: switch to %d after add: %w", domainerrors.ErrChainUnavailable, chainID, err)
	}
	return nil
}
