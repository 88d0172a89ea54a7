package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/stream"
)

type mockSearch struct{ mock.Mock }

func (m *mockSearch) AddDocuments(index string, docs interface{}) error {
	return m.Called(index, docs).Error(0)
}

func (m *mockSearch) UpdateDocuments(index string, docs interface{}) error {
	return m.Called(index, docs).Error(0)
}

func (m *mockSearch) DeleteDocument(index, id string) error {
	return m.Called(index, id).Error(0)
}

func (m *mockSearch) ClearIndex(index string) error {
	return m.Called(index).Error(0)
}

type mockOwners struct{ mock.Mock }

func (m *mockOwners) Get(ctx context.Context, itemID string) (string, error) {
	args := m.Called(itemID)
	return args.String(0), args.Error(1)
}

func (m *mockOwners) Delete(ctx context.Context, itemID string) error {
	return m.Called(itemID).Error(0)
}

type mockCounters struct{ mock.Mock }

func (m *mockCounters) DecrementItems(ctx context.Context, site domain.Site, identity string) error {
	return m.Called(site, identity).Error(0)
}

type mockGauges struct{ mock.Mock }

func (m *mockGauges) ItemRemoved(ctx context.Context, site domain.Site) error {
	return m.Called(site).Error(0)
}

type mockListings struct{ mock.Mock }

func (m *mockListings) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Listing, string, error) {
	args := m.Called(limit, cursor)
	return args.Get(0).([]domain.Listing), args.String(1), args.Error(2)
}

func newListingFixture() (*ListingProjector, *mockSearch, *mockOwners, *mockCounters, *mockGauges, *mockListings) {
	search := &mockSearch{}
	owners := &mockOwners{}
	counters := &mockCounters{}
	gauges := &mockGauges{}
	listings := &mockListings{}
	p := NewListingProjector(search, owners, counters, gauges, listings, domain.SiteSwap, "items", 2)
	return p, search, owners, counters, gauges, listings
}

func listingImage(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"item_id":         &types.AttributeValueMemberS{Value: id},
		"item_type":       &types.AttributeValueMemberN{Value: "2"},
		"condition":       &types.AttributeValueMemberN{Value: "1"},
		"title":           &types.AttributeValueMemberS{Value: "Desk lamp"},
		"description":     &types.AttributeValueMemberS{Value: "Barely used"},
		"location":        &types.AttributeValueMemberN{Value: "3"},
		"emoji":           &types.AttributeValueMemberN{Value: "4"},
		"owner_email":     &types.AttributeValueMemberS{Value: "seller@purdue.edu"},
		"expiration_date": &types.AttributeValueMemberN{Value: "20700"},
	}
}

func TestListingInsertProjectsDocument(t *testing.T) {
	p, search, _, _, _, _ := newListingFixture()
	search.On("AddDocuments", "items", mock.MatchedBy(func(docs interface{}) bool {
		batch, ok := docs.([]domain.ListingDoc)
		if !ok || len(batch) != 1 {
			return false
		}
		d := batch[0]
		return d.ItemID == "item-1" && d.ItemType == "Books" && d.Condition == "Good" &&
			d.Location == "EarhartHall" && d.Emoji == "Monitor" && d.ExpirationDate == "2026-09-04"
	})).Return(nil)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventInsert, NewImage: listingImage("item-1")})
	require.NoError(t, err)
	search.AssertExpectations(t)
}

func TestListingInsertUnknownCodesFallBack(t *testing.T) {
	p, search, _, _, _, _ := newListingFixture()
	image := listingImage("item-2")
	image["item_type"] = &types.AttributeValueMemberN{Value: "99"}
	image["condition"] = &types.AttributeValueMemberN{Value: "99"}
	image["location"] = &types.AttributeValueMemberN{Value: "99"}
	image["emoji"] = &types.AttributeValueMemberN{Value: "99"}

	search.On("AddDocuments", "items", mock.MatchedBy(func(docs interface{}) bool {
		d := docs.([]domain.ListingDoc)[0]
		return d.ItemType == "Other" && d.Condition == "Fair" &&
			d.Location == "CaryQuadEast" && d.Emoji == "Books"
	})).Return(nil)

	require.NoError(t, p.Handle(context.Background(), stream.Record{Type: stream.EventInsert, NewImage: image}))
	search.AssertExpectations(t)
}

func TestListingRemoveRunsAllThreeSteps(t *testing.T) {
	p, search, owners, counters, gauges, _ := newListingFixture()
	search.On("DeleteDocument", "items", "item-1").Return(nil)
	owners.On("Get", "item-1").Return("seller@purdue.edu", nil)
	counters.On("DecrementItems", domain.SiteSwap, "seller@purdue.edu").Return(nil)
	gauges.On("ItemRemoved", domain.SiteSwap).Return(nil)
	owners.On("Delete", "item-1").Return(nil)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventRemove, OldImage: listingImage("item-1")})
	require.NoError(t, err)
	search.AssertExpectations(t)
	owners.AssertExpectations(t)
	counters.AssertExpectations(t)
	gauges.AssertExpectations(t)
}

func TestListingRemoveReplayIsSettled(t *testing.T) {
	p, search, owners, counters, gauges, _ := newListingFixture()
	search.On("DeleteDocument", "items", "item-1").Return(nil)
	owners.On("Get", "item-1").Return("", domain.ErrNotFound)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventRemove, OldImage: listingImage("item-1")})
	require.NoError(t, err)
	counters.AssertNotCalled(t, "DecrementItems", mock.Anything, mock.Anything)
	gauges.AssertNotCalled(t, "ItemRemoved", mock.Anything)
	owners.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestListingRemoveSearchFailureStopsEarly(t *testing.T) {
	p, search, owners, _, _, _ := newListingFixture()
	search.On("DeleteDocument", "items", "item-1").Return(errors.New("engine down"))

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventRemove, OldImage: listingImage("item-1")})
	require.Error(t, err)
	owners.AssertNotCalled(t, "Get", mock.Anything)
}

func TestListingModifyIgnored(t *testing.T) {
	p, search, _, _, _, _ := newListingFixture()
	err := p.Handle(context.Background(), stream.Record{Type: stream.EventModify, NewImage: listingImage("item-1")})
	require.NoError(t, err)
	search.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything)
}

func TestListingReindexPagesThrough(t *testing.T) {
	p, search, _, _, _, listings := newListingFixture()
	search.On("ClearIndex", "items").Return(nil)
	listings.On("ScanPage", int32(2), "").Return([]domain.Listing{
		{ID: "a", Title: "one"},
		{ID: "b", Title: "two"},
	}, "next-cursor", nil)
	listings.On("ScanPage", int32(2), "next-cursor").Return([]domain.Listing{
		{ID: "c", Title: "three"},
	}, "", nil)
	search.On("AddDocuments", "items", mock.Anything).Return(nil).Twice()

	require.NoError(t, p.Reindex(context.Background()))
	search.AssertExpectations(t)
	listings.AssertExpectations(t)
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) ScanHousing(ctx context.Context, housingID string) ([]domain.Review, error) {
	args := m.Called(housingID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func reviewImage(housing, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"housing_id":     &types.AttributeValueMemberS{Value: housing},
		"review_id":      &types.AttributeValueMemberS{Value: id},
		"overall_rating": &types.AttributeValueMemberN{Value: "400"},
		"ratings": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"living_conditions": &types.AttributeValueMemberN{Value: "400"},
			"location":          &types.AttributeValueMemberN{Value: "500"},
			"amenities":         &types.AttributeValueMemberN{Value: "300"},
			"value":             &types.AttributeValueMemberN{Value: "400"},
			"community":         &types.AttributeValueMemberN{Value: "500"},
		}},
		"semester_season": &types.AttributeValueMemberS{Value: "Fall"},
		"semester_year":   &types.AttributeValueMemberN{Value: "2026"},
		"description":     &types.AttributeValueMemberS{Value: "Thin walls, great location"},
		"thumbs_up":       &types.AttributeValueMemberN{Value: "3"},
		"thumbs_down":     &types.AttributeValueMemberN{Value: "1"},
	}
}

func TestReviewInsertProjectsIntoHousingIndex(t *testing.T) {
	search := &mockSearch{}
	p := NewReviewProjector(search, &mockReviews{})
	search.On("AddDocuments", "wiley", mock.MatchedBy(func(docs interface{}) bool {
		batch, ok := docs.([]domain.ReviewDoc)
		if !ok || len(batch) != 1 {
			return false
		}
		d := batch[0]
		return d.ReviewID == "rev-1" && d.OverallRating == 400 &&
			d.Ratings.Location == 500 && d.Season == "Fall" && d.Year == 2026 &&
			d.ThumbsUp == 3 && d.ThumbsDown == 1
	})).Return(nil)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventInsert, NewImage: reviewImage("wiley", "rev-1")})
	require.NoError(t, err)
	search.AssertExpectations(t)
}

func TestReviewModifyProjectsThumbsOnly(t *testing.T) {
	search := &mockSearch{}
	p := NewReviewProjector(search, &mockReviews{})
	search.On("UpdateDocuments", "wiley", []thumbsDoc{{ReviewID: "rev-1", ThumbsUp: 3, ThumbsDown: 1}}).Return(nil)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventModify, NewImage: reviewImage("wiley", "rev-1")})
	require.NoError(t, err)
	search.AssertExpectations(t)
	search.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything)
}

func TestReviewRemoveDeletesFromHousingIndex(t *testing.T) {
	search := &mockSearch{}
	p := NewReviewProjector(search, &mockReviews{})
	search.On("DeleteDocument", "hub", "rev-9").Return(nil)

	err := p.Handle(context.Background(), stream.Record{Type: stream.EventRemove, OldImage: reviewImage("hub", "rev-9")})
	require.NoError(t, err)
	search.AssertExpectations(t)
}

func TestReviewRecordWithoutKeySkipped(t *testing.T) {
	search := &mockSearch{}
	p := NewReviewProjector(search, &mockReviews{})
	err := p.Handle(context.Background(), stream.Record{Type: stream.EventInsert, NewImage: map[string]types.AttributeValue{}})
	require.NoError(t, err)
	search.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything)
}

func TestReviewReindexRebuildsPerResidenceIndexes(t *testing.T) {
	search := &mockSearch{}
	reviews := &mockReviews{}
	p := NewReviewProjector(search, reviews)

	reviews.On("ScanHousing", "wiley").Return([]domain.Review{
		{HousingID: "wiley", ReviewID: "rev-1"},
	}, nil)
	reviews.On("ScanHousing", mock.Anything).Return([]domain.Review{}, nil)
	search.On("ClearIndex", mock.Anything).Return(nil)
	search.On("AddDocuments", "wiley", mock.MatchedBy(func(docs interface{}) bool {
		batch, ok := docs.([]domain.ReviewDoc)
		return ok && len(batch) == 1 && batch[0].ReviewID == "rev-1"
	})).Return(nil)

	require.NoError(t, p.Reindex(context.Background()))
	search.AssertExpectations(t)
	// Residences with no reviews are cleared but never written to.
	search.AssertNumberOfCalls(t, "AddDocuments", 1)
}

func TestListingInsertWithoutIDSkipped(t *testing.T) {
	p, search, _, _, _, _ := newListingFixture()
	err := p.Handle(context.Background(), stream.Record{Type: stream.EventInsert, NewImage: map[string]types.AttributeValue{}})
	require.NoError(t, err)
	search.AssertNotCalled(t, "AddDocuments", mock.Anything, mock.Anything)
}
