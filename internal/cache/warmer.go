package cache

import (
	"context"
	"log/slog"
	"time"
)

// Warmer pre-loads the active roster into Redis. The roster is the one
// read that is both stable and hit by every driver device at shift start,
// so it is warmed on boot and refreshed shortly after midnight when roster
// changes take effect.
type Warmer struct {
	cache  *RedisCache
	fetch  func(ctx context.Context) (any, error)
	ttl    time.Duration
	logger *slog.Logger
}

func NewWarmer(cache *RedisCache, fetch func(ctx context.Context) (any, error), ttl time.Duration, logger *slog.Logger) *Warmer {
	return &Warmer{
		cache:  cache,
		fetch:  fetch,
		ttl:    ttl,
		logger: logger.With("component", "cache_warmer"),
	}
}

func (w *Warmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	students, err := w.fetch(ctx)
	if err != nil {
		w.logger.Error("failed to fetch roster for warming", "error", err)
		return err
	}

	if err := w.cache.SetJSON(ctx, KeyStudents, students, w.ttl); err != nil {
		return err
	}

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// ScheduleMidnightRefresh re-warms the roster a few minutes after each
// midnight until the context is cancelled.
func (w *Warmer) ScheduleMidnightRefresh(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 5, 0, 0, now.Location())
		wait := next.Sub(now)

		w.logger.Info("scheduled next cache refresh", "at", next, "in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if err := w.WarmAll(ctx); err != nil {
				w.logger.Error("midnight cache refresh failed", "error", err)
			}
		}
	}
}
