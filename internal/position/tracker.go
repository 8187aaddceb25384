package position

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
)

// Key identifies one provider's position in one pool.
type Key struct {
	Pool     common.Hash
	Provider common.Address
}

// Position records the entry state a provider is insured against. Entry
// fields never change after open: partial liquidity changes keep the
// original baseline, so IL is always measured from the first entry.
type Position struct {
	Pool           common.Hash
	Provider       common.Address
	EntrySqrtPrice *big.Int
	EntryAmount0   *big.Int
	EntryAmount1   *big.Int
	OpenedAt       uint64
}

// Tracker is the lifecycle state machine for positions. At most one active
// position exists per key.
type Tracker struct {
	mu        sync.Mutex
	pools     *pool.Registry
	positions map[Key]Position
	logger    *zap.Logger
}

func NewTracker(pools *pool.Registry, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		pools:     pools,
		positions: make(map[Key]Position),
		logger:    logger,
	}
}

// Open installs an active position for the key, replacing any prior record.
// The host hook re-notifies on top-ups without closing first, so an existing
// position is overwritten rather than rejected; the overwrite is logged.
// Fails when the pool is not active.
func (t *Tracker) Open(poolID common.Hash, provider common.Address, entrySqrtPrice, amount0, amount1 *big.Int, openedAt uint64) error {
	if _, err := t.pools.Require(poolID); err != nil {
		return err
	}

	key := Key{Pool: poolID, Provider: provider}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[key]; ok {
		t.logger.Warn("position reopened without close",
			zap.String("pool_id", poolID.Hex()),
			zap.String("provider", provider.Hex()),
		)
	}

	t.positions[key] = Position{
		Pool:           poolID,
		Provider:       provider,
		EntrySqrtPrice: new(big.Int).Set(entrySqrtPrice),
		EntryAmount0:   new(big.Int).Set(amount0),
		EntryAmount1:   new(big.Int).Set(amount1),
		OpenedAt:       openedAt,
	}
	return nil
}

// RecordPartialChange reports whether an active position exists for the key.
// Partial liquidity changes do not alter entry fields.
func (t *Tracker) RecordPartialChange(poolID common.Hash, provider common.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.positions[Key{Pool: poolID, Provider: provider}]
	return ok
}

// Close removes the position for the key and returns its final snapshot.
// Read-and-invalidate is one step under the tracker lock, so a second close
// on the same key observes no position.
func (t *Tracker) Close(poolID common.Hash, provider common.Address) (Position, bool) {
	key := Key{Pool: poolID, Provider: provider}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[key]
	if !ok {
		return Position{}, false
	}
	delete(t.positions, key)
	return pos, true
}

// Get returns a snapshot of the active position for the key, if any.
func (t *Tracker) Get(poolID common.Hash, provider common.Address) (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[Key{Pool: poolID, Provider: provider}]
	if !ok {
		return Position{}, false
	}
	return Position{
		Pool:           pos.Pool,
		Provider:       pos.Provider,
		EntrySqrtPrice: new(big.Int).Set(pos.EntrySqrtPrice),
		EntryAmount0:   new(big.Int).Set(pos.EntryAmount0),
		EntryAmount1:   new(big.Int).Set(pos.EntryAmount1),
		OpenedAt:       pos.OpenedAt,
	}, true
}
