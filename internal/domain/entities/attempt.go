package entities

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
)

// AttemptState is a step of the payment attempt lifecycle
type AttemptState string

const (
	AttemptIdle             AttemptState = "IDLE"
	AttemptChainReady       AttemptState = "CHAIN_READY"
	AttemptAllowanceReady   AttemptState = "ALLOWANCE_READY"
	AttemptRouteResolved    AttemptState = "ROUTE_RESOLVED"
	AttemptFundsTransferred AttemptState = "FUNDS_TRANSFERRED"
	AttemptSettled          AttemptState = "SETTLED"
	AttemptFailed           AttemptState = "FAILED"
)

var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptIdle:             {AttemptChainReady},
	AttemptChainReady:       {AttemptAllowanceReady},
	AttemptAllowanceReady:   {AttemptRouteResolved, AttemptFundsTransferred, AttemptSettled},
	AttemptRouteResolved:    {AttemptFundsTransferred},
	AttemptFundsTransferred: {AttemptSettled},
}

// Terminal reports whether no further transition is possible
func (s AttemptState) Terminal() bool {
	return s == AttemptSettled || s == AttemptFailed
}

// CanTransition reports whether s may move to next
func (s AttemptState) CanTransition(next AttemptState) bool {
	if s.Terminal() {
		return false
	}
	if next == AttemptFailed {
		return true
	}
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Attempt is one execution of a payment link by a payer. It is a value:
// every transition returns a new Attempt and leaves the receiver untouched.
type Attempt struct {
	ID          uuid.UUID       `json:"id"`
	Link        *PaymentLink    `json:"-"`
	Token       TokenDescriptor `json:"token"`
	Payer       common.Address  `json:"payer"`
	PayerEmail  string          `json:"payerEmail,omitempty"`
	TokenAmount *big.Int        `json:"tokenAmount,omitempty"`
	State       AttemptState    `json:"state"`
	Reason      string          `json:"reason,omitempty"`
	History     []AttemptState  `json:"history"`
	TxHashes    []common.Hash   `json:"txHashes,omitempty"`
	RecordID    *uuid.UUID      `json:"recordId,omitempty"`
}

// NewAttempt returns an attempt in the IDLE state
func NewAttempt(id uuid.UUID, link *PaymentLink, token TokenDescriptor, payer common.Address) Attempt {
	return Attempt{
		ID:      id,
		Link:    link,
		Token:   token,
		Payer:   payer,
		State:   AttemptIdle,
		History: []AttemptState{AttemptIdle},
	}
}

func (a Attempt) clone() Attempt {
	a.History = append([]AttemptState(nil), a.History...)
	a.TxHashes = append([]common.Hash(nil), a.TxHashes...)
	if a.TokenAmount != nil {
		a.TokenAmount = new(big.Int).Set(a.TokenAmount)
	}
	return a
}

// Advance moves the attempt to next
func (a Attempt) Advance(next AttemptState) (Attempt, error) {
	if !a.State.CanTransition(next) {
		return a, fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, a.State, next)
	}
	out := a.clone()
	out.State = next
	out.History = append(out.History, next)
	return out, nil
}

// Fail moves the attempt to FAILED with the error kind of cause as reason.
// A terminal attempt is returned unchanged.
func (a Attempt) Fail(cause error) Attempt {
	if a.State.Terminal() {
		return a
	}
	out := a.clone()
	out.State = AttemptFailed
	out.Reason = domainerrors.KindOf(cause)
	out.History = append(out.History, AttemptFailed)
	return out
}

// WithTokenAmount returns a copy carrying the amount in base units
func (a Attempt) WithTokenAmount(amount *big.Int) Attempt {
	out := a.clone()
	out.TokenAmount = new(big.Int).Set(amount)
	return out
}

// WithTxHashes returns a copy with hashes appended
func (a Attempt) WithTxHashes(hashes ...common.Hash) Attempt {
	out := a.clone()
	out.TxHashes = append(out.TxHashes, hashes...)
	return out
}

// WithRecord returns a copy referencing the persisted settlement record
func (a Attempt) WithRecord(id uuid.UUID) Attempt {
	out := a.clone()
	out.RecordID = &id
	return out
}

// SettlementHash is the hash of the last confirmed transaction
func (a Attempt) SettlementHash() (common.Hash, bool) {
	if len(a.TxHashes) == 0 {
		return common.Hash{}, false
	}
	return a.TxHashes[len(a.TxHashes)-1], true
}
