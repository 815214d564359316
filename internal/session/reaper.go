package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically evicts sessions that have gone idle, so producers
// that vanish without a stop control do not leak upstream connections.
type Reaper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewReaper creates a reaper that sweeps the store every interval.
func NewReaper(store *Store, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("session reaper started",
		"interval", r.interval,
		"idle_timeout", r.store.cfg.IdleTimeout,
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			r.sweep(r.store.now())
		}
	}
}

// sweep evicts every session idle longer than the store's timeout as
// of the given instant, and reports how many it removed.
func (r *Reaper) sweep(now time.Time) int {
	evicted := 0
	for _, id := range r.store.idle(now) {
		if r.store.Remove(id, ReasonIdleTimeout) {
			r.logger.Info("evicted idle session", "session_id", id)
			evicted++
		}
	}
	return evicted
}
