package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kimmove-blip/Stock-sub000/internal/domain"
)

// AccountCache caches the informational brokerage reads (account
// snapshot, pending orders). It is invalidated as a side effect of every
// settled approval or rejection. Thread-safe.
type AccountCache struct {
	mu     sync.Mutex
	broker Brokerage
	ttl    time.Duration

	snap     *domain.AccountSnapshot
	orders   []domain.PendingOrder
	ordersAt time.Time
}

// NewAccountCache creates a cache over the brokerage reads.
func NewAccountCache(broker Brokerage, ttl time.Duration) *AccountCache {
	return &AccountCache{broker: broker, ttl: ttl}
}

// Snapshot returns the account snapshot, fetching when the cache is cold
// or stale.
func (a *AccountCache) Snapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.snap != nil && time.Since(a.snap.FetchedAt) < a.ttl {
		return *a.snap, nil
	}

	snap, err := a.broker.Account(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	a.snap = &snap
	return snap, nil
}

// PendingOrders returns the resting orders, fetching when stale.
func (a *AccountCache) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.orders != nil && time.Since(a.ordersAt) < a.ttl {
		return a.orders, nil
	}

	orders, err := a.broker.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}
	a.orders = orders
	a.ordersAt = time.Now()
	return orders, nil
}

// Invalidate drops both caches so the next read refetches.
func (a *AccountCache) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = nil
	a.orders = nil
}
