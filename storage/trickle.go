package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Trickler periodically calls Store.Sync on a ticker, bounding the dirty
// page cache footprint when memory-mode is off. It is started and stopped
// by the engine; sync errors are logged, never surfaced as ingestion
// failures.
type Trickler struct {
	store    Store
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTrickler returns a Trickler that syncs store every interval once
// Start is called.
func NewTrickler(store Store, interval time.Duration, log *zap.Logger) *Trickler {
	return &Trickler{store: store, interval: interval, log: log}
}

// Start launches the background sync goroutine. Calling Start twice
// without an intervening Stop is a no-op.
func (t *Trickler) Start(ctx context.Context) {
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx)
}

func (t *Trickler) run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.store.Sync(); err != nil {
				t.log.Warn("trickle sync failed", zap.Error(err))
			}
		}
	}
}

// Stop cancels the background goroutine and waits for it to exit.
func (t *Trickler) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
}
