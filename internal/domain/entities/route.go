package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RouteStep is one executable transaction of an aggregation route
type RouteStep struct {
	ID              string          `json:"id"`
	Tool            string          `json:"tool,omitempty"`
	ChainID         uint64          `json:"chainId" validate:"required"`
	To              string          `json:"to" validate:"required,eth_addr"`
	Value           *big.Int        `json:"value,omitempty"`
	Data            []byte          `json:"data,omitempty"`
	GasLimit        uint64          `json:"gasLimit,omitempty"`
	ApprovalAddress *common.Address `json:"approvalAddress,omitempty"`
	FromToken       common.Address  `json:"fromToken"`
	FromAmount      *big.Int        `json:"fromAmount,omitempty"`
}

// ToAddress returns the parsed destination of the step
func (s RouteStep) ToAddress() common.Address {
	return common.HexToAddress(s.To)
}

// Route is an ordered list of steps moving the payer's asset to the settlement asset
type Route struct {
	ID                 string      `json:"id"`
	Steps              []RouteStep `json:"steps" validate:"required,min=1,dive"`
	EstimatedOutput    *big.Int    `json:"estimatedOutput,omitempty"`
	EstimatedOutputMin *big.Int    `json:"estimatedOutputMin,omitempty"`
}

// Receipt is the confirmed outcome of a submitted transaction
type Receipt struct {
	Hash        common.Hash `json:"hash"`
	Success     bool        `json:"success"`
	BlockNumber uint64      `json:"blockNumber"`
}

// RouteRequest asks an aggregator to move SourceAmount of SourceToken into
// DestToken on DestChainID for SettlementAddress.
type RouteRequest struct {
	PayerAddress      common.Address
	SettlementAddress common.Address
	SourceChainID     uint64
	SourceToken       common.Address
	SourceAmount      *big.Int
	DestChainID       uint64
	DestToken         common.Address
}
