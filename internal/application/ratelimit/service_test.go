package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redigo "github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/redis"
)

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := redis.NewFromPool(&redigo.Pool{
		Dial: func() (redigo.Conn, error) {
			return redigo.Dial("tcp", s.Addr())
		},
	})
	t.Cleanup(func() { c.Close() })
	return NewService(c), s
}

func TestLockThreshold(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	locked, err := svc.IsLocked(ctx, domain.SiteSwap, domain.PurposeAuthLock, "a@x", 3)
	require.NoError(t, err)
	assert.False(t, locked)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Increment(ctx, domain.SiteSwap, domain.PurposeAuthLock, "a@x", time.Minute, 3))
	}

	locked, err = svc.IsLocked(ctx, domain.SiteSwap, domain.PurposeAuthLock, "a@x", 3)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestClearDropsAllPurposes(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Increment(ctx, domain.SiteSwap, domain.PurposeAuthLock, "a@x", time.Minute, 5))
	require.NoError(t, svc.Increment(ctx, domain.SiteSwap, domain.PurposeCodeLock, "a@x", time.Minute, 5))

	require.NoError(t, svc.Clear(ctx, domain.SiteSwap, "a@x",
		domain.PurposeAuthLock, domain.PurposeCodeLock, domain.PurposeForgotLock))

	assert.False(t, s.Exists("swap:auth_lock:a@x"))
	assert.False(t, s.Exists("swap:code_lock:a@x"))
}

func TestItemsCounterCap(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := svc.IncrementItems(ctx, domain.SiteSwap, "a@x", 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := svc.IncrementItems(ctx, domain.SiteSwap, "a@x", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.DecrementItems(ctx, domain.SiteSwap, "a@x"))
	ok, err = svc.IncrementItems(ctx, domain.SiteSwap, "a@x", 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
