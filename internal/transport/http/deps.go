package http

import (
	"context"

	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/domain"
)

// ListingService is the minimal interface the router requires from the
// listing application service.
type ListingService interface {
	Create(ctx context.Context, site domain.Site, ownerEmail string, payload domain.ListingPayload) (*domain.Listing, error)
	Remove(ctx context.Context, ownerEmail, itemID string) error
}

// ReviewService is the minimal interface the router requires from the review
// application service.
type ReviewService interface {
	Create(ctx context.Context, payload domain.ReviewPayload) (*domain.Review, error)
	Thumbs(ctx context.Context, payload domain.ThumbsPayload) error
}

// MetricsService is the read/write surface of the public counters.
type MetricsService interface {
	Visit(ctx context.Context, site domain.Site, hashedIP string) error
	Visitors(ctx context.Context, site domain.Site) (int64, error)
	Items(ctx context.Context, site domain.Site) (int64, error)
}

// TokenVerifier checks the api_token cookie each frontend build ships.
type TokenVerifier interface {
	Verify(site domain.Site, token string) error
}

// Deps holds all application dependencies for the router.
type Deps struct {
	Sessions session.Service
	Listings ListingService
	Reviews  ReviewService
	Metrics  MetricsService
	Tokens   TokenVerifier
}
