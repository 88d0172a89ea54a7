package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redigo "github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/application/metrics"
	"github.com/campusswap/api/internal/application/ratelimit"
	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/redis"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, l *domain.Listing) error {
	return m.Called(l).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, itemID string) error {
	return m.Called(itemID).Error(0)
}

type mockOwners struct{ mock.Mock }

func (m *mockOwners) Put(ctx context.Context, itemID, ownerEmail string) error {
	return m.Called(itemID, ownerEmail).Error(0)
}

func (m *mockOwners) Get(ctx context.Context, itemID string) (string, error) {
	args := m.Called(itemID)
	return args.String(0), args.Error(1)
}

func newFixture(t *testing.T) (*Service, *mockStore, *mockOwners, *ratelimit.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewFromPool(&redigo.Pool{
		Dial: func() (redigo.Conn, error) {
			return redigo.Dial("tcp", mr.Addr())
		},
	})
	t.Cleanup(func() { cache.Close() })
	locks := ratelimit.NewService(cache)
	gauges := metrics.NewService(cache, 24*time.Hour)

	store := &mockStore{}
	owners := &mockOwners{}
	svc := NewService(store, owners, locks, gauges, 2, config.AuthTunables{MaxFieldChars: 100})
	return svc, store, owners, locks
}

func validPayload() domain.ListingPayload {
	return domain.ListingPayload{
		ItemType:    "Books",
		Condition:   "Good",
		Title:       "Calculus textbook",
		Description: "Eighth edition, some highlighting",
		Location:    "EarhartHall",
		Emoji:       "Books",
	}
}

func TestCreateHappyPath(t *testing.T) {
	svc, store, owners, _ := newFixture(t)
	store.On("Put", mock.Anything).Return(nil)
	owners.On("Put", mock.Anything, "seller@purdue.edu").Return(nil)

	l, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", validPayload())
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "seller@purdue.edu", l.OwnerEmail)
	assert.Equal(t, uint8(domain.ItemBooks), l.Type)
	assert.Equal(t, uint8(domain.ConditionGood), l.Condition)
	assert.Equal(t, domain.DateToDay(time.Now().Add(7*24*time.Hour)), l.ExpirationDays)
	assert.Greater(t, l.ExpiresAt, time.Now().Add(20*24*time.Hour).Unix())
	store.AssertExpectations(t)
	owners.AssertExpectations(t)
}

func TestCreateRejectsUnknownEnumLabels(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	for _, mutate := range []func(*domain.ListingPayload){
		func(p *domain.ListingPayload) { p.ItemType = "Vehicles" },
		func(p *domain.ListingPayload) { p.Condition = "Mint" },
		func(p *domain.ListingPayload) { p.Location = "Mars" },
		func(p *domain.ListingPayload) { p.Emoji = "Rocket" },
	} {
		payload := validPayload()
		mutate(&payload)
		_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", payload)
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	payload := validPayload()
	payload.Title = ""
	_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsOverlongFields(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	payload := validPayload()
	for i := 0; i < 101; i++ {
		payload.Description += "x"
	}
	_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsProfanity(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	payload := validPayload()
	payload.Title = "this fucking lamp"
	_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateEnforcesOwnerQuota(t *testing.T) {
	svc, store, owners, _ := newFixture(t)
	store.On("Put", mock.Anything).Return(nil)
	owners.On("Put", mock.Anything, mock.Anything).Return(nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", validPayload())
		require.NoError(t, err)
	}

	_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", validPayload())
	require.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), domain.MsgTooManyListings)
}

func TestCreateRollsBackQuotaOnInsertFailure(t *testing.T) {
	svc, store, _, locks := newFixture(t)
	store.On("Put", mock.Anything).Return(errors.New("table unavailable")).Once()
	store.On("Put", mock.Anything).Return(nil)

	_, err := svc.Create(context.Background(), domain.SiteSwap, "seller@purdue.edu", validPayload())
	require.Error(t, err)

	// The failed insert released its slot, so the full quota is still usable.
	for i := 0; i < 2; i++ {
		ok, err := locks.IncrementItems(context.Background(), domain.SiteSwap, "seller@purdue.edu", 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRemoveRequiresOwnership(t *testing.T) {
	svc, store, owners, _ := newFixture(t)
	owners.On("Get", "item-1").Return("seller@purdue.edu", nil)

	err := svc.Remove(context.Background(), "intruder@purdue.edu", "item-1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	store.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestRemoveDeletesOwnListing(t *testing.T) {
	svc, store, owners, _ := newFixture(t)
	owners.On("Get", "item-1").Return("seller@purdue.edu", nil)
	store.On("Delete", "item-1").Return(nil)

	require.NoError(t, svc.Remove(context.Background(), "seller@purdue.edu", "item-1"))
	store.AssertExpectations(t)
}

func TestRemoveUnknownListing(t *testing.T) {
	svc, _, owners, _ := newFixture(t)
	owners.On("Get", "missing").Return("", domain.ErrNotFound)

	err := svc.Remove(context.Background(), "seller@purdue.edu", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
