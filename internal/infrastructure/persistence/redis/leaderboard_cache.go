package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps fully ranked leaderboards in Redis.
// Each (scope, period type) pair maps to one key holding the ranked
// entries as a JSON array. Entries are stored post-ranking, so a cache
// hit returns ranks, trends, and scores without touching Postgres.
//
// Implements leaderboard.Cache.
type LeaderboardCache struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewLeaderboardCache creates a leaderboard cache on top of the base Cache.
// A non-positive ttl falls back to TTLLeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration, logger *slog.Logger) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "leaderboard_cache")),
	}
}

// GetRanked returns the cached ranked entries for a scope and period type.
// A miss is reported via ok=false with a nil error.
func (lc *LeaderboardCache) GetRanked(ctx context.Context, scope leaderboard.Scope, periodType period.Type) ([]leaderboard.RankedEntry, bool, error) {
	key := RankedKey(scope.ID(), string(periodType))

	var entries []leaderboard.RankedEntry
	if err := lc.cache.Get(ctx, key, &entries); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		if errors.Is(err, ErrCacheSerialization) {
			// Stale payload from an older format. Drop it and recompute.
			lc.logger.Warn("dropping unreadable leaderboard cache entry",
				slog.String("key", key),
				slog.String("error", err.Error()))
			_ = lc.cache.Delete(ctx, key)
			return nil, false, nil
		}
		return nil, false, err
	}

	return entries, true, nil
}

// SetRanked caches ranked entries for a scope and period type.
func (lc *LeaderboardCache) SetRanked(ctx context.Context, scope leaderboard.Scope, periodType period.Type, entries []leaderboard.RankedEntry) error {
	if entries == nil {
		entries = []leaderboard.RankedEntry{}
	}

	key := RankedKey(scope.ID(), string(periodType))
	return lc.cache.Set(ctx, key, entries, lc.ttl)
}

// Invalidate drops the cached leaderboard for a scope and period type.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, scope leaderboard.Scope, periodType period.Type) error {
	key := RankedKey(scope.ID(), string(periodType))
	return lc.cache.Delete(ctx, key)
}

// InvalidateScope drops every cached period for a scope at once.
// Used when the underlying read model changes in a way that
// affects all windows, e.g. a backfill.
func (lc *LeaderboardCache) InvalidateScope(ctx context.Context, scope leaderboard.Scope) error {
	return lc.cache.DeleteByPattern(ctx, ScopePattern(scope.ID()))
}
