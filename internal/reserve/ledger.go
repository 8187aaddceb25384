package reserve

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var bpsDenominator = big.NewInt(10000)

// Ledger tracks per-pool premium reserves. Balances only grow through
// CollectPremium and only shrink through Debit, and never go negative.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Hash]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Hash]*big.Int)}
}

// CollectPremium credits floor(notional * rateBps / 10000) to the pool
// reserve and returns the credited amount. Non-positive notional and a zero
// rate are no-ops.
func (l *Ledger) CollectPremium(poolID common.Hash, notional *big.Int, rateBps uint32) *big.Int {
	if notional == nil || notional.Sign() <= 0 || rateBps == 0 {
		return new(big.Int)
	}

	premium := new(big.Int).Mul(notional, big.NewInt(int64(rateBps)))
	premium.Div(premium, bpsDenominator)
	if premium.Sign() == 0 {
		return premium
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[poolID]
	if !ok {
		balance = new(big.Int)
		l.balances[poolID] = balance
	}
	balance.Add(balance, premium)
	return premium
}

// Balance returns a copy of the pool reserve balance, zero for pools that
// never collected a premium.
func (l *Ledger) Balance(poolID common.Hash) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[poolID]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// Debit removes min(amount, balance) from the pool reserve and returns the
// amount actually removed. The clamp is the insolvency guard: a payout can be
// shorted but the reserve cannot go negative.
func (l *Ledger) Debit(poolID common.Hash, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[poolID]
	if !ok || balance.Sign() == 0 {
		return new(big.Int)
	}

	debited := new(big.Int).Set(amount)
	if debited.Cmp(balance) > 0 {
		debited.Set(balance)
	}
	balance.Sub(balance, debited)
	return debited
}
