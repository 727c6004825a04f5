package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/builders-garden/swifty/internal/domain/entities"
)

var (
	// ErrUnrecognizedChain is returned by SwitchChain for chains never added to the wallet
	ErrUnrecognizedChain = errors.New("unrecognized chain")
	ErrNoActiveChain     = errors.New("wallet has no active chain")
)

const (
	defaultReceiptPollInterval = 2 * time.Second
	gasLimitBufferPercent      = 20
)

// ContractCall describes one ABI method invocation
type ContractCall struct {
	Address common.Address
	ABI     abi.ABI
	Method  string
	Args    []interface{}
}

// TxRequest is a raw transaction to sign and submit on the active chain
type TxRequest struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// KeyedWallet is a server-side signer holding a private key. It keeps one
// active chain at a time, like a browser wallet, and only switches to chains
// that were registered through AddChain.
type KeyedWallet struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	factory      *ClientFactory
	pollInterval time.Duration

	mu     sync.RWMutex
	chains map[uint64]entities.ChainDefinition
	active uint64

	// held from nonce read to broadcast
	sendMu sync.Mutex
}

// NewKeyedWallet creates a wallet from a hex private key. The first chain
// in chains becomes the active one.
func NewKeyedWallet(privateKeyHex string, factory *ClientFactory, chains ...entities.ChainDefinition) (*KeyedWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid checkout private key: %w", err)
	}
	if factory == nil {
		factory = NewClientFactory()
	}

	w := &KeyedWallet{
		key:          privateKey,
		address:      crypto.PubkeyToAddress(privateKey.PublicKey),
		factory:      factory,
		pollInterval: defaultReceiptPollInterval,
		chains:       make(map[uint64]entities.ChainDefinition),
	}
	for i, def := range chains {
		w.chains[def.ChainID] = def
		if i == 0 {
			w.active = def.ChainID
		}
	}
	return w, nil
}

// SetReceiptPollInterval overrides how often receipts are polled
func (w *KeyedWallet) SetReceiptPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// Address returns the signer's account
func (w *KeyedWallet) Address() common.Address {
	return w.address
}

// ChainID returns the active chain
func (w *KeyedWallet) ChainID(context.Context) (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.active == 0 {
		return 0, ErrNoActiveChain
	}
	return w.active, nil
}

// AddChain registers a chain so that it can be switched to
func (w *KeyedWallet) AddChain(_ context.Context, def entities.ChainDefinition) error {
	if def.ChainID == 0 || len(def.RPCURLs) == 0 {
		return fmt.Errorf("chain definition %d has no rpc url", def.ChainID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chains[def.ChainID] = def
	return nil
}

// SwitchChain makes chainID the active chain after checking the node serves it
func (w *KeyedWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.mu.RLock()
	def, ok := w.chains[chainID]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnrecognizedChain, chainID)
	}

	backend, err := w.backendFor(def)
	if err != nil {
		return err
	}
	remote, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if remote.Uint64() != chainID {
		return fmt.Errorf("rpc for chain %d serves chain %s", chainID, remote)
	}

	w.mu.Lock()
	w.active = chainID
	w.mu.Unlock()
	return nil
}

// ReadContract executes a view call and returns the decoded outputs
func (w *KeyedWallet) ReadContract(ctx context.Context, call ContractCall) ([]interface{}, error) {
	backend, _, err := w.activeBackend()
	if err != nil {
		return nil, err
	}
	data, err := call.ABI.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	to := call.Address
	out, err := backend.CallContract(ctx, ethereum.CallMsg{From: w.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := call.ABI.Unpack(call.Method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", call.Method, err)
	}
	return vals, nil
}

// WriteContract signs and submits a contract call on the active chain
func (w *KeyedWallet) WriteContract(ctx context.Context, call ContractCall) (common.Hash, error) {
	data, err := call.ABI.Pack(call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	return w.SendTransaction(ctx, TxRequest{To: call.Address, Data: data})
}

// SendTransaction signs and submits req on the active chain
func (w *KeyedWallet) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	backend, chainID, err := w.activeBackend()
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimated, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &to, Value: value, Data: req.Data})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated + estimated*gasLimitBufferPercent/100
	}

	txData, err := w.feeFields(ctx, backend, nonce, to, value, gasLimit, req.Data, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := types.SignNewTx(w.key, types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), txData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (w *KeyedWallet) feeFields(ctx context.Context, backend Backend, nonce uint64, to common.Address, value *big.Int, gas uint64, data []byte, chainID uint64) (types.TxData, error) {
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		return &types.LegacyTx{Nonce: nonce, To: &to, Value: value, Gas: gas, GasPrice: gasPrice, Data: data}, nil
	}

	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return &types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}, nil
}

// WaitForTransactionReceipt polls the active chain until hash is mined or ctx ends
func (w *KeyedWallet) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error) {
	backend, _, err := w.activeBackend()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			var block uint64
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.Uint64()
			}
			return &entities.Receipt{
				Hash:        hash,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
				BlockNumber: block,
			}, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *KeyedWallet) activeBackend() (Backend, uint64, error) {
	w.mu.RLock()
	active := w.active
	def, ok := w.chains[active]
	w.mu.RUnlock()
	if active == 0 || !ok {
		return nil, 0, ErrNoActiveChain
	}
	backend, err := w.backendFor(def)
	if err != nil {
		return nil, 0, err
	}
	return backend, active, nil
}

func (w *KeyedWallet) backendFor(def entities.ChainDefinition) (Backend, error) {
	var lastErr error
	for _, url := range def.RPCURLs {
		backend, err := w.factory.GetBackend(url)
		if err == nil {
			return backend, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("chain %d has no rpc url", def.ChainID)
	}
	return nil, lastErr
}
