// Package lease implements the job lease and result cache on top of a
// kv.Store. It is the single source of truth for "is this key running" and
// "do we have a fresh result".
package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/kv"
)

const (
	leaseKeyPrefix  = "audit:lease:"
	resultKeyPrefix = "audit:result:"
)

// Config carries the lease and cache expiry windows.
type Config struct {
	// LeaseTTL bounds how long a key can stay "running" if the holder dies.
	LeaseTTL time.Duration
	// ResultTTL is the fresh-result window for completed jobs.
	ResultTTL time.Duration
	// ErrorTTL is the shorter window applied to error results so a transient
	// failure does not poison the key.
	ErrorTTL time.Duration
}

// DefaultConfig mirrors the production windows: 2h lease, 7d results, 1d errors.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:  2 * time.Hour,
		ResultTTL: 7 * 24 * time.Hour,
		ErrorTTL:  24 * time.Hour,
	}
}

// AcquireResult reports the outcome of TryAcquire.
type AcquireResult struct {
	Acquired bool
	// Since is the holder's acquisition time when Acquired is false.
	Since time.Time
}

// Manager implements the four lease/cache operations over a kv.Store.
type Manager struct {
	store kv.Store
	clock audit.Clock
	cfg   Config
}

// NewManager constructs a Manager.
func NewManager(store kv.Store, clock audit.Clock, cfg Config) *Manager {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultConfig().LeaseTTL
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultConfig().ResultTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = DefaultConfig().ErrorTTL
	}
	return &Manager{store: store, clock: clock, cfg: cfg}
}

// TryAcquire attempts to take the lease for key. It fails closed: a store
// error is returned as-is, never reported as "already running".
func (m *Manager) TryAcquire(ctx context.Context, key string) (AcquireResult, error) {
	now := m.clock.Now()
	ok, err := m.store.SetNX(ctx, leaseKeyPrefix+key, now.Format(time.RFC3339Nano), m.cfg.LeaseTTL)
	if err != nil {
		return AcquireResult{}, fmt.Errorf("acquire lease for %s: %w", key, err)
	}
	if ok {
		return AcquireResult{Acquired: true, Since: now}, nil
	}
	since := now
	if raw, found, gerr := m.store.Get(ctx, leaseKeyPrefix+key); gerr == nil && found {
		if ts, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			since = ts
		}
	}
	return AcquireResult{Acquired: false, Since: since}, nil
}

// Release drops the lease. Idempotent: releasing an absent lease is a no-op.
func (m *Manager) Release(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, leaseKeyPrefix+key); err != nil {
		return fmt.Errorf("release lease for %s: %w", key, err)
	}
	return nil
}

// GetFreshResult returns the cached result for key if it is still inside its
// expiry window. Staleness is decided here from the stored timestamp, not by
// trusting the store to have evicted the record.
func (m *Manager) GetFreshResult(ctx context.Context, key string) (audit.CachedResult, bool, error) {
	raw, found, err := m.store.Get(ctx, resultKeyPrefix+key)
	if err != nil {
		return audit.CachedResult{}, false, fmt.Errorf("read cached result for %s: %w", key, err)
	}
	if !found {
		return audit.CachedResult{}, false, nil
	}
	var res audit.CachedResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return audit.CachedResult{}, false, fmt.Errorf("decode cached result for %s: %w", key, err)
	}
	if !res.Fresh(m.clock.Now()) {
		return audit.CachedResult{}, false, nil
	}
	return res, true, nil
}

// StoreResult caches the terminal record for key, overwriting any prior
// result. The store TTL matches the record's own expiry window.
func (m *Manager) StoreResult(ctx context.Context, key string, res audit.CachedResult) error {
	ttl := m.cfg.ResultTTL
	if res.Status == audit.StatusError {
		ttl = m.cfg.ErrorTTL
	}
	res.Key = key
	res.ExpiresAt = res.ComputedAt.Add(ttl)
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode cached result for %s: %w", key, err)
	}
	if err := m.store.Set(ctx, resultKeyPrefix+key, string(data), ttl); err != nil {
		return fmt.Errorf("store cached result for %s: %w", key, err)
	}
	return nil
}
