package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/redis"
)

// Service wraps the cache's capped counters into lockout checks. Every key is
// namespaced {site}:{purpose}:{identity}; thresholds and TTLs come from the
// caller so each purpose keeps its own policy.
type Service struct {
	cache Cache
}

// Cache is the slice of the cache client this service needs.
type Cache interface {
	GetInt(ctx context.Context, key string) (int64, error)
	IncrementWithCap(ctx context.Context, key string, ttlIfNew time.Duration, max int) (int64, error)
	DecrementFloorZero(ctx context.Context, key string) (int64, error)
	DeleteBatch(ctx context.Context, keys ...string) error
}

func NewService(cache Cache) *Service {
	return &Service{cache: cache}
}

// IsLocked reports whether the counter for identity has reached threshold.
func (s *Service) IsLocked(ctx context.Context, site domain.Site, purpose domain.Purpose, identity string, threshold int) (bool, error) {
	n, err := s.cache.GetInt(ctx, redis.Key(site, purpose, identity))
	if err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}
	return n >= int64(threshold), nil
}

// Increment bumps the counter for identity, capping at max. ttl <= 0 leaves
// the key persistent for callers that stamp expiry when the flow finalizes.
func (s *Service) Increment(ctx context.Context, site domain.Site, purpose domain.Purpose, identity string, ttl time.Duration, max int) error {
	if _, err := s.cache.IncrementWithCap(ctx, redis.Key(site, purpose, identity), ttl, max); err != nil {
		return fmt.Errorf("increment lock: %w", err)
	}
	return nil
}

// Clear drops every named counter for identity in one round trip. Called when
// a flow completes so stale lockouts do not outlive a successful verify.
func (s *Service) Clear(ctx context.Context, site domain.Site, identity string, purposes ...domain.Purpose) error {
	keys := make([]string, len(purposes))
	for i, p := range purposes {
		keys[i] = redis.Key(site, p, identity)
	}
	if err := s.cache.DeleteBatch(ctx, keys...); err != nil {
		return fmt.Errorf("clear locks: %w", err)
	}
	return nil
}

// IncrementItems bumps the owner's posted-items counter, returning false when
// the cap is already reached. The counter has no expiry; it is decremented by
// the projection when a listing is removed.
func (s *Service) IncrementItems(ctx context.Context, site domain.Site, identity string, max int) (bool, error) {
	key := redis.Key(site, domain.PurposeItemLock, identity)
	before, err := s.cache.GetInt(ctx, key)
	if err != nil {
		return false, fmt.Errorf("items counter: %w", err)
	}
	if before >= int64(max) {
		return false, nil
	}
	if _, err := s.cache.IncrementWithCap(ctx, key, 0, max); err != nil {
		return false, fmt.Errorf("items counter: %w", err)
	}
	return true, nil
}

// DecrementItems lowers the owner's posted-items counter, deleting it at zero.
func (s *Service) DecrementItems(ctx context.Context, site domain.Site, identity string) error {
	if _, err := s.cache.DecrementFloorZero(ctx, redis.Key(site, domain.PurposeItemLock, identity)); err != nil {
		return fmt.Errorf("items counter: %w", err)
	}
	return nil
}
