package memory

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts abandoned registrations to bound memory.
// Correctness does not depend on it; expiry is also checked on consume.
type Sweeper struct {
	store    *Store
	interval time.Duration
	now      func() time.Time
	onSweep  func(removed int)
}

// NewSweeper returns a Sweeper for store. onSweep, when non-nil, is called
// after every pass with the number of evicted entries.
func NewSweeper(store *Store, interval time.Duration, onSweep func(removed int)) *Sweeper {
	return &Sweeper{store: store, interval: interval, now: time.Now, onSweep: onSweep}
}

// Run sweeps every interval until ctx is done. It returns nil on cancellation.
func (sw *Sweeper) Run(ctx context.Context) error {
	if sw.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed := sw.store.Sweep(sw.now())
			if removed > 0 {
				slog.Debug("swept expired registrations", "removed", removed)
			}
			if sw.onSweep != nil {
				sw.onSweep(removed)
			}
		}
	}
}
