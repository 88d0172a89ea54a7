package review

import (
	"context"
	"fmt"
	"time"

	goaway "github.com/TwiN/go-away"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/pkg/id"
	"github.com/campusswap/api/internal/pkg/validate"
)

// Store is the slice of the reviews table this service writes.
type Store interface {
	Put(ctx context.Context, rv *domain.Review) error
	ApplyThumbs(ctx context.Context, housingID, reviewID string, upDelta, downDelta int8) error
}

// Service validates and creates housing reviews and applies vote deltas. The
// change stream projects both into the per-residence search indexes.
type Service struct {
	reviews  Store
	maxChars int
}

func NewService(reviews Store, auth config.AuthTunables) *Service {
	return &Service{reviews: reviews, maxChars: auth.MaxFieldChars}
}

// descriptionCap is looser than the single-line field cap: reviews are prose.
const descriptionCap = 2000

// Create validates and persists one review.
func (s *Service) Create(ctx context.Context, payload domain.ReviewPayload) (*domain.Review, error) {
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	if !domain.ValidHousingID(domain.HousingID(payload.HousingID)) {
		return nil, fmt.Errorf("unknown residence %q: %w", payload.HousingID, domain.ErrBadRequest)
	}
	// Submissions carry whole stars only; fractional aggregates are computed,
	// never stored per review.
	if payload.OverallRating%100 != 0 || !payload.Ratings.WholeStars() {
		return nil, fmt.Errorf("ratings must be whole stars: %w", domain.ErrBadRequest)
	}
	if len(payload.Description) >= descriptionCap {
		return nil, fmt.Errorf("description exceeds %d characters: %w", descriptionCap-1, domain.ErrBadRequest)
	}
	if goaway.IsProfane(payload.Description) {
		return nil, fmt.Errorf("inappropriate language: %w", domain.ErrBadRequest)
	}

	rv := &domain.Review{
		HousingID:     payload.HousingID,
		ReviewID:      id.New(),
		OverallRating: payload.OverallRating,
		Ratings:       payload.Ratings,
		Season:        payload.Season,
		Year:          payload.Year,
		Description:   payload.Description,
		CreatedDays:   domain.DateToDay(time.Now()),
	}
	if err := s.reviews.Put(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// Thumbs applies one voter's deltas to a review's counters.
func (s *Service) Thumbs(ctx context.Context, payload domain.ThumbsPayload) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	if !domain.ValidHousingID(domain.HousingID(payload.HousingID)) {
		return fmt.Errorf("unknown residence %q: %w", payload.HousingID, domain.ErrBadRequest)
	}
	if payload.UpDelta == 0 && payload.DownDelta == 0 {
		return nil
	}
	return s.reviews.ApplyThumbs(ctx, payload.HousingID, payload.ReviewID, payload.UpDelta, payload.DownDelta)
}
