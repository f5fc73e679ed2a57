package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecom_ops_backend/internal/cache"
	"ecom_ops_backend/pkg/utils"
)

const defaultLockTTL = 30 * time.Second

// SyncGuard makes each named sync flow single-flight.
type SyncGuard struct {
	locker cache.Locker
	ttl    time.Duration
}

// NewSyncGuard wraps locker; a nil locker gets a process-local one.
func NewSyncGuard(locker cache.Locker, ttl time.Duration) *SyncGuard {
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &SyncGuard{locker: locker, ttl: ttl}
}

// run executes fn while holding the flow lock. fn calls refresh between
// pages to extend the lease. ErrSyncInProgress is returned when another run
// holds the lock. When the lock backend itself fails the run proceeds
// unguarded.
func (g *SyncGuard) run(ctx context.Context, flow string, fn func(refresh func()) error) error {
	if g == nil {
		return fn(func() {})
	}
	lease, err := g.locker.Obtain(ctx, flow, g.ttl)
	if errors.Is(err, cache.ErrLocked) {
		return fmt.Errorf("%w: %s", ErrSyncInProgress, flow)
	}
	if err != nil {
		utils.LogWarn("Sync lock unavailable, running unguarded", map[string]interface{}{"flow": flow, "error": err.Error()})
		return fn(func() {})
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			utils.LogWarn("Failed to release sync lock", map[string]interface{}{"flow": flow, "error": err.Error()})
		}
	}()

	refresh := func() {
		if err := lease.Refresh(ctx); err != nil {
			utils.LogWarn("Failed to refresh sync lock", map[string]interface{}{"flow": flow, "error": err.Error()})
		}
	}
	return fn(refresh)
}

// validateDateFilter checks optional YYYY-MM-DD bounds.
func validateDateFilter(start, end *string) error {
	for _, d := range []*string{start, end} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.Parse(utils.DateLayout, *d); err != nil {
			return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, *d)
		}
	}
	return nil
}
