package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-store-view pickup behaviour for the digest.
type Config struct {
	// StoreID identifies the store view (must match job.Job.StoreID).
	StoreID string

	// MaxConcurrency limits how many jobs from this store view may be
	// in flight simultaneously within the process. Zero means no
	// store-specific limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second that may be
	// picked up for this store view. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// storeState tracks runtime state for a single store view.
type storeState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-store pickup rate limiting and concurrency for
// the digest. Store views without a config have no limits. Safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*storeState
}

// NewManager creates a Manager with the given store configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{stores: make(map[string]*storeState, len(configs))}
	for _, cfg := range configs {
		m.stores[cfg.StoreID] = newStoreState(cfg)
	}
	return m
}

func newStoreState(cfg Config) *storeState {
	st := &storeState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		st.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return st
}

// Acquire checks rate and concurrency limits for the store view. If the
// job may proceed it increments the active counter and returns true.
// The caller MUST call Release when the job's pass completes.
func (m *Manager) Acquire(storeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stores[storeID]
	if st == nil {
		return true
	}
	if st.limiter != nil && !st.limiter.Allow() {
		return false
	}
	if st.config.MaxConcurrency > 0 && st.active >= st.config.MaxConcurrency {
		return false
	}
	st.active++
	return true
}

// Release decrements the active job count for the store view.
func (m *Manager) Release(storeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st := m.stores[storeID]; st != nil && st.active > 0 {
		st.active--
	}
}

// SetConfig dynamically updates (or creates) a store view configuration,
// preserving the current active count.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := newStoreState(cfg)
	if existing := m.stores[cfg.StoreID]; existing != nil {
		st.active = existing.active
	}
	m.stores[cfg.StoreID] = st
}

// ActiveCount returns the number of in-flight jobs for a store view.
func (m *Manager) ActiveCount(storeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st := m.stores[storeID]; st != nil {
		return st.active
	}
	return 0
}
