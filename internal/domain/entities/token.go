package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
)

// NativeTokenAddress is the sentinel address used for a chain's native asset
var NativeTokenAddress = common.Address{}

const maxTokenDecimals = 36

// TokenDescriptor identifies an asset on a chain
type TokenDescriptor struct {
	Symbol    string         `json:"symbol"`
	Address   common.Address `json:"address"`
	ChainID   uint64         `json:"chainId"`
	Decimals  uint8          `json:"decimals"`
	ChainName string         `json:"chainName,omitempty"`
}

// IsNative reports whether the descriptor points at the native asset
func (t TokenDescriptor) IsNative() bool {
	return t.Address == NativeTokenAddress
}

// Key encodes the descriptor as symbol-address-chainId-decimals
func (t TokenDescriptor) Key() string {
	return fmt.Sprintf("%s-%s-%d-%d", t.Symbol, t.Address.Hex(), t.ChainID, t.Decimals)
}

// Same reports whether both descriptors denote the same asset on the same chain
func (t TokenDescriptor) Same(other TokenDescriptor) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// ParseSelectionKey decodes a composite token key of the form
// symbol-address-chainId-decimals.
func ParseSelectionKey(key string) (TokenDescriptor, error) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 4 {
		return TokenDescriptor{}, fmt.Errorf("%w: expected 4 parts, got %d", domainerrors.ErrInvalidSelectionKey, len(parts))
	}

	symbol := strings.TrimSpace(parts[0])
	if symbol == "" {
		return TokenDescriptor{}, fmt.Errorf("%w: empty symbol", domainerrors.ErrInvalidSelectionKey)
	}
	if !common.IsHexAddress(parts[1]) {
		return TokenDescriptor{}, fmt.Errorf("%w: invalid address %q", domainerrors.ErrInvalidSelectionKey, parts[1])
	}
	chainID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil || chainID == 0 {
		return TokenDescriptor{}, fmt.Errorf("%w: invalid chain id %q", domainerrors.ErrInvalidSelectionKey, parts[2])
	}
	decimals, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil || decimals > maxTokenDecimals {
		return TokenDescriptor{}, fmt.Errorf("%w: invalid decimals %q", domainerrors.ErrInvalidSelectionKey, parts[3])
	}

	return TokenDescriptor{
		Symbol:   symbol,
		Address:  common.HexToAddress(parts[1]),
		ChainID:  chainID,
		Decimals: uint8(decimals),
	}, nil
}
