package metrics

import (
	"context"
	"time"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/redis"
)

// Cache is the slice of the cache client this service needs.
type Cache interface {
	SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
	DecrementClampZero(ctx context.Context, key string) (int64, error)
}

// Service keeps the public-facing counters: unique visitors per window and
// the live-listings gauge.
type Service struct {
	cache  Cache
	window time.Duration
}

func NewService(cache Cache, window time.Duration) *Service {
	return &Service{cache: cache, window: window}
}

// Visit counts one visitor. The per-client gate means a reload inside the
// window does not count twice; the counter itself never resets.
func (s *Service) Visit(ctx context.Context, site domain.Site, hashedIP string) error {
	created, err := s.cache.SetIfAbsentWithTTL(ctx, redis.Key(site, domain.PurposeTempLock, hashedIP), s.window)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	_, err = s.cache.Increment(ctx, redis.Key(site, domain.PurposeMetric, "visitors"))
	return err
}

// Visitors returns the total unique-visit count.
func (s *Service) Visitors(ctx context.Context, site domain.Site) (int64, error) {
	return s.cache.GetInt(ctx, redis.Key(site, domain.PurposeMetric, "visitors"))
}

// ItemAdded bumps the live-listings gauge.
func (s *Service) ItemAdded(ctx context.Context, site domain.Site) error {
	_, err := s.cache.Increment(ctx, redis.Key(site, domain.PurposeMetric, "items"))
	return err
}

// ItemRemoved lowers the live-listings gauge, clamped at zero so a replayed
// removal cannot push it negative.
func (s *Service) ItemRemoved(ctx context.Context, site domain.Site) error {
	_, err := s.cache.DecrementClampZero(ctx, redis.Key(site, domain.PurposeMetric, "items"))
	return err
}

// Items returns the live-listings gauge.
func (s *Service) Items(ctx context.Context, site domain.Site) (int64, error) {
	return s.cache.GetInt(ctx, redis.Key(site, domain.PurposeMetric, "items"))
}
