package entities

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
)

var (
	BaseUSDCAddress     = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	OptimismUSDCAddress = common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")
	ArbitrumUSDCAddress = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	PolygonUSDCAddress  = common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
)

func usdc(chainID uint64, addr common.Address) TokenDescriptor {
	return TokenDescriptor{Symbol: "USDC", Address: addr, ChainID: chainID, Decimals: 6, ChainName: ChainName(chainID)}
}

func eth(chainID uint64) TokenDescriptor {
	return TokenDescriptor{Symbol: "ETH", Address: NativeTokenAddress, ChainID: chainID, Decimals: 18, ChainName: ChainName(chainID)}
}

// OneTimeTokens are the assets accepted for ONE_TIME products
var OneTimeTokens = []TokenDescriptor{
	usdc(ChainIDBase, BaseUSDCAddress),
	eth(ChainIDBase),
	usdc(ChainIDOptimism, OptimismUSDCAddress),
	eth(ChainIDOptimism),
	usdc(ChainIDArbitrum, ArbitrumUSDCAddress),
	eth(ChainIDArbitrum),
	usdc(ChainIDPolygon, PolygonUSDCAddress),
}

// RecurringTokens are the assets accepted for RECURRING products.
// Subscriptions pull funds through an allowance, so native assets are excluded.
var RecurringTokens = []TokenDescriptor{
	usdc(ChainIDBase, BaseUSDCAddress),
	usdc(ChainIDOptimism, OptimismUSDCAddress),
	usdc(ChainIDArbitrum, ArbitrumUSDCAddress),
	usdc(ChainIDPolygon, PolygonUSDCAddress),
}

// TokenCatalog holds the selectable tokens per payment method
type TokenCatalog struct {
	OneTime   []TokenDescriptor
	Recurring []TokenDescriptor
}

// DefaultCatalog returns the built-in token catalog
func DefaultCatalog() *TokenCatalog {
	return &TokenCatalog{OneTime: OneTimeTokens, Recurring: RecurringTokens}
}

// Tokens returns the list for method
func (c *TokenCatalog) Tokens(method PaymentMethod) []TokenDescriptor {
	if method == PaymentMethodRecurring {
		return c.Recurring
	}
	return c.OneTime
}

// Lookup parses key and checks it is offered for method
func (c *TokenCatalog) Lookup(method PaymentMethod, key string) (TokenDescriptor, error) {
	desc, err := ParseSelectionKey(key)
	if err != nil {
		return TokenDescriptor{}, err
	}
	for _, tok := range c.Tokens(method) {
		if tok.Same(desc) {
			if tok.Decimals != desc.Decimals {
				return TokenDescriptor{}, fmt.Errorf("%w: decimals mismatch for %s", domainerrors.ErrUnsupportedToken, tok.Symbol)
			}
			return tok, nil
		}
	}
	return TokenDescriptor{}, fmt.Errorf("%w: %s on chain %d for %s", domainerrors.ErrUnsupportedToken, desc.Symbol, desc.ChainID, method)
}
