package projection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/stream"
)

// ReviewStore supplies one residence's reviews for the startup reindex.
type ReviewStore interface {
	ScanHousing(ctx context.Context, housingID string) ([]domain.Review, error)
}

// ReviewProjector mirrors review rows into per-residence search indexes. The
// index is named by the residence slug, so every residence's reviews are
// searchable in isolation.
type ReviewProjector struct {
	search  SearchIndex
	reviews ReviewStore
}

func NewReviewProjector(search SearchIndex, reviews ReviewStore) *ReviewProjector {
	return &ReviewProjector{search: search, reviews: reviews}
}

// thumbsDoc is the partial document an update projects: only the vote
// counters move after a review is published.
type thumbsDoc struct {
	ReviewID   string `json:"review_id"`
	ThumbsUp   int64  `json:"thumbs_up"`
	ThumbsDown int64  `json:"thumbs_down"`
}

// Handle applies one change record.
func (p *ReviewProjector) Handle(ctx context.Context, rec stream.Record) error {
	image := rec.Image()
	housingID := stream.StringAttr(image, "housing_id")
	reviewID := stream.StringAttr(image, "review_id")
	if housingID == "" || reviewID == "" {
		slog.Warn("review record without key, skipping", "seq", rec.SequenceNumber)
		return nil
	}

	switch rec.Type {
	case stream.EventInsert:
		return p.search.AddDocuments(housingID, []domain.ReviewDoc{decodeReviewImage(image)})
	case stream.EventModify:
		return p.search.UpdateDocuments(housingID, []thumbsDoc{{
			ReviewID:   reviewID,
			ThumbsUp:   stream.NumberAttr(rec.NewImage, "thumbs_up"),
			ThumbsDown: stream.NumberAttr(rec.NewImage, "thumbs_down"),
		}})
	case stream.EventRemove:
		return p.search.DeleteDocument(housingID, reviewID)
	default:
		return nil
	}
}

// Reindex rebuilds every residence's index from the table. Run asynchronously
// at startup, like the listing reindex.
func (p *ReviewProjector) Reindex(ctx context.Context) error {
	for _, housingID := range domain.HousingIDs() {
		reviews, err := p.reviews.ScanHousing(ctx, string(housingID))
		if err != nil {
			return fmt.Errorf("reindex %s: %w", housingID, err)
		}
		if err := p.search.ClearIndex(string(housingID)); err != nil {
			return fmt.Errorf("reindex %s: %w", housingID, err)
		}
		if len(reviews) == 0 {
			continue
		}
		docs := make([]domain.ReviewDoc, len(reviews))
		for i, rv := range reviews {
			docs[i] = rv.Doc()
		}
		if err := p.search.AddDocuments(string(housingID), docs); err != nil {
			return fmt.Errorf("reindex %s: %w", housingID, err)
		}
	}
	return nil
}

func decodeReviewImage(image map[string]types.AttributeValue) domain.ReviewDoc {
	ratings, _ := image["ratings"].(*types.AttributeValueMemberM)
	var breakdown domain.Ratings
	if ratings != nil {
		breakdown = domain.Ratings{
			LivingConditions: uint16(stream.NumberAttr(ratings.Value, "living_conditions")),
			Location:         uint16(stream.NumberAttr(ratings.Value, "location")),
			Amenities:        uint16(stream.NumberAttr(ratings.Value, "amenities")),
			Value:            uint16(stream.NumberAttr(ratings.Value, "value")),
			Community:        uint16(stream.NumberAttr(ratings.Value, "community")),
		}
	}
	return domain.ReviewDoc{
		ReviewID:      stream.StringAttr(image, "review_id"),
		OverallRating: uint16(stream.NumberAttr(image, "overall_rating")),
		Ratings:       breakdown,
		Season:        stream.StringAttr(image, "semester_season"),
		Year:          uint16(stream.NumberAttr(image, "semester_year")),
		Description:   stream.StringAttr(image, "description"),
		ThumbsUp:      stream.NumberAttr(image, "thumbs_up"),
		ThumbsDown:    stream.NumberAttr(image, "thumbs_down"),
	}
}
