package listing

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

// Store is the slice of the listings table this service writes.
type Store interface {
	Put(ctx context.Context, l *domain.Listing) error
	Delete(ctx context.Context, itemID string) error
}

// OwnerStore registers the listing-to-owner side row at creation time.
type OwnerStore interface {
	Put(ctx context.Context, itemID, ownerEmail string) error
	Get(ctx context.Context, itemID string) (string, error)
}

// Counters is the per-owner posted-items accounting.
type Counters interface {
	IncrementItems(ctx context.Context, site domain.Site, identity string, max int) (bool, error)
	DecrementItems(ctx context.Context, site domain.Site, identity string) error
}

// Gauges is the display-counter surface.
type Gauges interface {
	ItemAdded(ctx context.Context, site domain.Site) error
}

const listingLifetime = 7 * 24 * time.Hour

// ttlSlack keeps the native table TTL well past the logical expiry so the
// nightly sweep, not the storage engine, is what normally removes a row.
const ttlSlack = 14 * 24 * time.Hour

// Service validates and creates marketplace listings. Removal of expired or
// user-deleted listings flows through the table delete; the change stream
// settles the search index and the counters.
type Service struct {
	listings Store
	owners   OwnerStore
	counters Counters
	gauges   Gauges
	maxItems int
	maxChars int
}

func NewService(listings Store, owners OwnerStore, counters Counters, gauges Gauges, maxItems int, auth config.AuthTunables) *Service {
	return &Service{
		listings: listings,
		owners:   owners,
		counters: counters,
		gauges:   gauges,
		maxItems: maxItems,
		maxChars: auth.MaxFieldChars,
	}
}

// Create validates the payload, reserves a slot in the owner's quota and
// persists the row. ownerEmail comes from the session, never the payload.
func (s *Service) Create(ctx context.Context, site domain.Site, ownerEmail string, payload domain.ListingPayload) (*domain.Listing, error) {
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	itemType, ok := domain.ParseItemType(payload.ItemType)
	if !ok {
		return nil, fmt.Errorf("unknown item type %q: %w", payload.ItemType, domain.ErrBadRequest)
	}
	condition, ok := domain.ParseCondition(payload.Condition)
	if !ok {
		return nil, fmt.Errorf("unknown condition %q: %w", payload.Condition, domain.ErrBadRequest)
	}
	location, ok := domain.ParseCampusLocation(payload.Location)
	if !ok {
		return nil, fmt.Errorf("unknown location %q: %w", payload.Location, domain.ErrBadRequest)
	}
	emoji, ok := domain.ParseEmoji(payload.Emoji)
	if !ok {
		return nil, fmt.Errorf("unknown emoji %q: %w", payload.Emoji, domain.ErrBadRequest)
	}

	for _, field := range []string{payload.Title, payload.Description} {
		if len(field) >= s.maxChars {
			return nil, fmt.Errorf("field exceeds %d characters: %w", s.maxChars-1, domain.ErrBadRequest)
		}
		if goaway.IsProfane(field) {
			return nil, fmt.Errorf("inappropriate language: %w", domain.ErrBadRequest)
		}
	}

	allowed, err := s.counters.IncrementItems(ctx, site, ownerEmail, s.maxItems)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", domain.MsgTooManyListings, domain.ErrBadRequest)
	}

	now := time.Now()
	l := &domain.Listing{
		ID:             id.New(),
		Type:           uint8(itemType),
		Condition:      uint8(condition),
		Title:          payload.Title,
		Description:    payload.Description,
		Location:       uint8(location),
		Emoji:          uint8(emoji),
		OwnerEmail:     ownerEmail,
		ExpirationDays: domain.DateToDay(now.Add(listingLifetime)),
		ExpiresAt:      now.Add(listingLifetime + ttlSlack).Unix(),
	}

	// Quota slot is held, so an insert failure has to give it back.
	if err := s.listings.Put(ctx, l); err != nil {
		if derr := s.counters.DecrementItems(ctx, site, ownerEmail); derr != nil {
			return nil, fmt.Errorf("%v (quota rollback failed: %v)", err, derr)
		}
		return nil, err
	}
	if err := s.owners.Put(ctx, l.ID, ownerEmail); err != nil {
		return nil, err
	}
	if err := s.gauges.ItemAdded(ctx, site); err != nil {
		return nil, err
	}
	return l, nil
}

// Remove deletes a listing the caller owns. The change stream takes care of
// the search doc, the quota counter and the side row.
func (s *Service) Remove(ctx context.Context, ownerEmail, itemID string) error {
	owner, err := s.owners.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if owner != ownerEmail {
		return fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
	}
	return s.listings.Delete(ctx, itemID)
}
