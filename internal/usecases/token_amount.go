package usecases

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
)

// TokenAmountCalculator converts a USD price into token base units
type TokenAmountCalculator struct {
	oracle  PriceOracle
	timeout Timeouts
}

func NewTokenAmountCalculator(oracle PriceOracle, timeouts Timeouts) *TokenAmountCalculator {
	return &TokenAmountCalculator{oracle: oracle, timeout: timeouts}
}

// Amount returns usd / price(token) in the token's base units, rounded down
func (c *TokenAmountCalculator) Amount(ctx context.Context, token entities.TokenDescriptor, usd decimal.Decimal) (*big.Int, error) {
	ctx, cancel := withTimeout(ctx, c.timeout.Price)
	defer cancel()

	price, err := c.oracle.TokenPriceUSD(ctx, token.ChainID, token.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: price for %s: %w", domainerrors.ErrNoRouteFound, token.Key(), err)
	}
	return ToBaseUnits(usd, price, token.Decimals)
}

// ToBaseUnits computes usd / price scaled to decimals
func ToBaseUnits(usd, price decimal.Decimal, decimals uint8) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive token price %s", domainerrors.ErrNoRouteFound, price)
	}
	amount := usd.DivRound(price, int32(decimals)+2).Shift(int32(decimals)).Floor()
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount rounds to zero", domainerrors.ErrBadRequest)
	}
	return amount.BigInt(), nil
}

// FromBaseUnits renders base units in whole token units
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
