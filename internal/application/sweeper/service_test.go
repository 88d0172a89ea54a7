package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
)

type fakeListings struct {
	pages   [][]domain.Listing
	scans   int
	deleted [][]string
	// scan count observed as each delete lands, to pin the interleaving.
	deletedAtScan []int
}

func (f *fakeListings) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Listing, string, error) {
	page := f.pages[f.scans]
	f.scans++
	next := ""
	if f.scans < len(f.pages) {
		next = fmt.Sprintf("page-%d", f.scans)
	}
	return page, next, nil
}

func (f *fakeListings) DeleteBatch(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) > 25 {
		return fmt.Errorf("delete batch of %d exceeds the 25-item limit", len(itemIDs))
	}
	f.deleted = append(f.deleted, append([]string(nil), itemIDs...))
	f.deletedAtScan = append(f.deletedAtScan, f.scans)
	return nil
}

func testSweepTunables() config.SweepTunables {
	return config.SweepTunables{PageSize: 100, Schedule: "1 0 0 * * *"}
}

func TestRunOnceDeletesOnlyPastDue(t *testing.T) {
	today := domain.DateToDay(time.Now())
	store := &fakeListings{pages: [][]domain.Listing{{
		{ID: "stale", ExpirationDays: today - 1},
		{ID: "due-today", ExpirationDays: today},
		{ID: "fresh", ExpirationDays: today + 7},
	}}}

	svc := NewService(store, testSweepTunables())
	require.NoError(t, svc.RunOnce(context.Background()))

	require.Len(t, store.deleted, 1)
	assert.Equal(t, []string{"stale"}, store.deleted[0])
}

func TestRunOnceScansEveryPage(t *testing.T) {
	today := domain.DateToDay(time.Now())
	store := &fakeListings{pages: [][]domain.Listing{
		{{ID: "a", ExpirationDays: today - 3}},
		{{ID: "b", ExpirationDays: today + 1}},
		{{ID: "c", ExpirationDays: today - 1}},
	}}

	svc := NewService(store, testSweepTunables())
	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Equal(t, 3, store.scans)
	require.Len(t, store.deleted, 2)
	assert.Equal(t, []string{"a"}, store.deleted[0])
	assert.Equal(t, []string{"c"}, store.deleted[1])
}

func TestRunOnceDeletesEachPageBeforeTheNext(t *testing.T) {
	today := domain.DateToDay(time.Now())
	store := &fakeListings{pages: [][]domain.Listing{
		{{ID: "a", ExpirationDays: today - 1}},
		{{ID: "b", ExpirationDays: today - 1}},
	}}

	svc := NewService(store, testSweepTunables())
	require.NoError(t, svc.RunOnce(context.Background()))

	// Page one's expired row is gone before page two is fetched.
	assert.Equal(t, []int{1, 2}, store.deletedAtScan)
}

func TestRunOnceChunksDeletes(t *testing.T) {
	today := domain.DateToDay(time.Now())
	var page []domain.Listing
	for i := 0; i < 60; i++ {
		page = append(page, domain.Listing{ID: fmt.Sprintf("item-%02d", i), ExpirationDays: today - 1})
	}
	store := &fakeListings{pages: [][]domain.Listing{page}}

	svc := NewService(store, testSweepTunables())
	require.NoError(t, svc.RunOnce(context.Background()))

	require.Len(t, store.deleted, 3)
	assert.Len(t, store.deleted[0], 25)
	assert.Len(t, store.deleted[1], 25)
	assert.Len(t, store.deleted[2], 10)
}

func TestRunOnceNothingExpired(t *testing.T) {
	today := domain.DateToDay(time.Now())
	store := &fakeListings{pages: [][]domain.Listing{{
		{ID: "fresh", ExpirationDays: today + 2},
	}}}

	svc := NewService(store, testSweepTunables())
	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Empty(t, store.deleted)
}
