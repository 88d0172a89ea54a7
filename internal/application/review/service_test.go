package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, rv *domain.Review) error {
	return m.Called(rv).Error(0)
}

func (m *mockStore) ApplyThumbs(ctx context.Context, housingID, reviewID string, upDelta, downDelta int8) error {
	return m.Called(housingID, reviewID, upDelta, downDelta).Error(0)
}

func newFixture() (*Service, *mockStore) {
	store := &mockStore{}
	return NewService(store, config.AuthTunables{MaxFieldChars: 100}), store
}

func validPayload() domain.ReviewPayload {
	return domain.ReviewPayload{
		HousingID:     "wiley",
		OverallRating: 400,
		Ratings: domain.Ratings{
			LivingConditions: 400,
			Location:         500,
			Amenities:        300,
			Value:            400,
			Community:        500,
		},
		Season:      "Fall",
		Year:        2026,
		Description: "Close to everything, showers could be better",
	}
}

func TestCreateHappyPath(t *testing.T) {
	svc, store := newFixture()
	store.On("Put", mock.Anything).Return(nil)

	rv, err := svc.Create(context.Background(), validPayload())
	require.NoError(t, err)

	assert.NotEmpty(t, rv.ReviewID)
	assert.Equal(t, "wiley", rv.HousingID)
	assert.Equal(t, uint16(400), rv.OverallRating)
	assert.Zero(t, rv.ThumbsUp)
	assert.Zero(t, rv.ThumbsDown)
	assert.Equal(t, domain.DateToDay(time.Now()), rv.CreatedDays)
	store.AssertExpectations(t)
}

func TestCreateRejectsUnknownResidence(t *testing.T) {
	svc, _ := newFixture()
	payload := validPayload()
	payload.HousingID = "hogwarts"
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsFractionalStars(t *testing.T) {
	svc, _ := newFixture()

	payload := validPayload()
	payload.OverallRating = 450
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	payload = validPayload()
	payload.Ratings.Location = 333
	_, err = svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	svc, _ := newFixture()
	payload := validPayload()
	payload.Ratings.Value = 600
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsBadSeason(t *testing.T) {
	svc, _ := newFixture()
	payload := validPayload()
	payload.Season = "Winter"
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateRejectsProfanity(t *testing.T) {
	svc, _ := newFixture()
	payload := validPayload()
	payload.Description = "the fucking elevators never work"
	_, err := svc.Create(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestThumbsAppliesDeltas(t *testing.T) {
	svc, store := newFixture()
	store.On("ApplyThumbs", "wiley", "rev-1", int8(1), int8(0)).Return(nil)

	err := svc.Thumbs(context.Background(), domain.ThumbsPayload{
		HousingID: "wiley",
		ReviewID:  "rev-1",
		UpDelta:   1,
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestThumbsSwitchingSides(t *testing.T) {
	svc, store := newFixture()
	store.On("ApplyThumbs", "wiley", "rev-1", int8(-1), int8(1)).Return(nil)

	err := svc.Thumbs(context.Background(), domain.ThumbsPayload{
		HousingID: "wiley",
		ReviewID:  "rev-1",
		UpDelta:   -1,
		DownDelta: 1,
	})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestThumbsNoOpSkipsWrite(t *testing.T) {
	svc, store := newFixture()
	err := svc.Thumbs(context.Background(), domain.ThumbsPayload{
		HousingID: "wiley",
		ReviewID:  "rev-1",
	})
	require.NoError(t, err)
	store.AssertNotCalled(t, "ApplyThumbs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestThumbsRejectsUnknownResidence(t *testing.T) {
	svc, _ := newFixture()
	err := svc.Thumbs(context.Background(), domain.ThumbsPayload{
		HousingID: "hogwarts",
		ReviewID:  "rev-1",
		UpDelta:   1,
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestThumbsRejectsOversizeDelta(t *testing.T) {
	svc, _ := newFixture()
	err := svc.Thumbs(context.Background(), domain.ThumbsPayload{
		HousingID: "wiley",
		ReviewID:  "rev-1",
		UpDelta:   2,
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
