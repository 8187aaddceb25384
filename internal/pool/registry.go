package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidTolerance rejects an activation whose IL tolerance is outside
	// (0, 10000] basis points.
	ErrInvalidTolerance = errors.New("pool: il tolerance must be in (0, 10000]")
	// ErrAlreadyActivated rejects reconfiguration of an activated pool.
	ErrAlreadyActivated = errors.New("pool: already activated")
	// ErrNotRegistered marks operations on pools that were never activated or
	// were deactivated.
	ErrNotRegistered = errors.New("pool: not registered")
)

// Config is the per-pool compensation policy, set once at activation.
type Config struct {
	PremiumRateBps uint32
	ILToleranceBps uint32
	Active         bool
}

// Registry owns pool policy records keyed by pool id.
type Registry struct {
	mu    sync.RWMutex
	pools map[common.Hash]Config
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[common.Hash]Config)}
}

// Activate registers a pool with its premium rate and IL tolerance. The
// config is immutable afterwards; a second activation fails.
func (r *Registry) Activate(poolID common.Hash, premiumRateBps, ilToleranceBps uint32) error {
	if ilToleranceBps == 0 || ilToleranceBps > 10000 {
		return fmt.Errorf("%w: got %d", ErrInvalidTolerance, ilToleranceBps)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[poolID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyActivated, poolID.Hex())
	}
	r.pools[poolID] = Config{
		PremiumRateBps: premiumRateBps,
		ILToleranceBps: ilToleranceBps,
		Active:         true,
	}
	return nil
}

// Deactivate gates the pool off without erasing its config.
func (r *Registry) Deactivate(poolID common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.pools[poolID]
	if !ok {
		return
	}
	cfg.Active = false
	r.pools[poolID] = cfg
}

// Get returns the pool config if the pool was ever activated.
func (r *Registry) Get(poolID common.Hash) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.pools[poolID]
	return cfg, ok
}

// Require returns the config of an active pool, or ErrNotRegistered for
// unknown and deactivated pools.
func (r *Registry) Require(poolID common.Hash) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.pools[poolID]
	if !ok || !cfg.Active {
		return Config{}, fmt.Errorf("%w: %s", ErrNotRegistered, poolID.Hex())
	}
	return cfg, nil
}
