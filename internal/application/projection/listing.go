package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/stream"
)

// SearchIndex is the slice of the search client projectors use.
type SearchIndex interface {
	AddDocuments(index string, docs interface{}) error
	UpdateDocuments(index string, docs interface{}) error
	DeleteDocument(index, id string) error
	ClearIndex(index string) error
}

// OwnerStore resolves and clears the listing-to-owner side table.
type OwnerStore interface {
	Get(ctx context.Context, itemID string) (string, error)
	Delete(ctx context.Context, itemID string) error
}

// Counters is the slice of the posted-items accounting projectors touch.
type Counters interface {
	DecrementItems(ctx context.Context, site domain.Site, identity string) error
}

// Gauges is the display-counter surface.
type Gauges interface {
	ItemRemoved(ctx context.Context, site domain.Site) error
}

// ListingStore supplies pages for the startup reindex.
type ListingStore interface {
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Listing, string, error)
}

// ListingProjector mirrors the listings table into the search index and keeps
// the owner-side accounting consistent with what the table actually holds.
type ListingProjector struct {
	search   SearchIndex
	owners   OwnerStore
	counters Counters
	gauges   Gauges
	listings ListingStore
	site     domain.Site
	index    string
	pageSize int32
}

func NewListingProjector(search SearchIndex, owners OwnerStore, counters Counters, gauges Gauges, listings ListingStore, site domain.Site, index string, pageSize int32) *ListingProjector {
	return &ListingProjector{
		search:   search,
		owners:   owners,
		counters: counters,
		gauges:   gauges,
		listings: listings,
		site:     site,
		index:    index,
		pageSize: pageSize,
	}
}

// Handle applies one change record. Updates are ignored: listings are
// immutable after creation, only created and removed.
func (p *ListingProjector) Handle(ctx context.Context, rec stream.Record) error {
	switch rec.Type {
	case stream.EventInsert:
		return p.handleInsert(rec)
	case stream.EventRemove:
		return p.handleRemove(ctx, rec)
	default:
		return nil
	}
}

func (p *ListingProjector) handleInsert(rec stream.Record) error {
	doc := decodeListingImage(rec.NewImage)
	if doc.ItemID == "" {
		slog.Warn("listing record without item_id, skipping", "seq", rec.SequenceNumber)
		return nil
	}
	return p.search.AddDocuments(p.index, []domain.ListingDoc{doc})
}

// handleRemove runs three deliberately ordered, non-atomic steps: document
// first (a dangling doc is user-visible), then the owner's quota, then the
// side row. A crash between steps is healed by the startup reindex and the
// clamp on the gauge.
func (p *ListingProjector) handleRemove(ctx context.Context, rec stream.Record) error {
	itemID := stream.StringAttr(rec.OldImage, "item_id")
	if itemID == "" {
		slog.Warn("removal record without item_id, skipping", "seq", rec.SequenceNumber)
		return nil
	}

	if err := p.search.DeleteDocument(p.index, itemID); err != nil {
		return err
	}

	owner, err := p.owners.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Replayed removal: the side row is already gone and the counters
			// were already settled.
			return nil
		}
		return err
	}

	if err := p.counters.DecrementItems(ctx, p.site, owner); err != nil {
		return err
	}
	if err := p.gauges.ItemRemoved(ctx, p.site); err != nil {
		return err
	}

	return p.owners.Delete(ctx, itemID)
}

// Reindex rebuilds the search index from the table: clear, then re-add page
// by page. Run asynchronously at startup; the stream consumer keeps the index
// current afterwards.
func (p *ListingProjector) Reindex(ctx context.Context) error {
	if err := p.search.ClearIndex(p.index); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	cursor := ""
	for {
		listings, next, err := p.listings.ScanPage(ctx, p.pageSize, cursor)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		if len(listings) > 0 {
			docs := make([]domain.ListingDoc, len(listings))
			for i, l := range listings {
				docs[i] = l.Doc()
			}
			if err := p.search.AddDocuments(p.index, docs); err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

// decodeListingImage converts a row image into a search document. Unknown
// enum codes fall back to their defaults instead of failing the record.
func decodeListingImage(image map[string]types.AttributeValue) domain.ListingDoc {
	return domain.ListingDoc{
		ItemID:         stream.StringAttr(image, "item_id"),
		ItemType:       domain.ItemType(stream.NumberAttr(image, "item_type")).String(),
		Title:          stream.StringAttr(image, "title"),
		Condition:      domain.Condition(stream.NumberAttr(image, "condition")).String(),
		Location:       domain.CampusLocation(stream.NumberAttr(image, "location")).String(),
		Description:    stream.StringAttr(image, "description"),
		Emoji:          domain.Emoji(stream.NumberAttr(image, "emoji")).String(),
		ExpirationDate: domain.DayToDate(stream.NumberAttr(image, "expiration_date")).Format(time.DateOnly),
	}
}
