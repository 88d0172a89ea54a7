package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
)

// ListingStore is the slice of the listings table the sweeper touches.
type ListingStore interface {
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Listing, string, error)
	DeleteBatch(ctx context.Context, itemIDs []string) error
}

const batchLimit = 25

// Service deletes listings whose logical expiration date has passed. Deletes
// go through the table so the change stream fans the removals out to the
// search index and the owner accounting, same as a manual delete.
type Service struct {
	listings ListingStore
	tunables config.SweepTunables
	cron     *cron.Cron
}

func NewService(listings ListingStore, tunables config.SweepTunables) *Service {
	return &Service{
		listings: listings,
		tunables: tunables,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start runs one sweep immediately, then schedules the nightly one.
func (s *Service) Start(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		return err
	}
	_, err := s.cron.AddFunc(s.tunables.Schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			slog.Error("expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce scans the table page by page and deletes every listing dated
// strictly before today. Listings expiring today survive until the next run.
// Each page's expired rows are deleted before the next page is fetched, so
// memory stays bounded by the page size however large the table grows.
func (s *Service) RunOnce(ctx context.Context) error {
	today := domain.DateToDay(time.Now())
	total := 0
	cursor := ""
	for {
		listings, next, err := s.listings.ScanPage(ctx, int32(s.tunables.PageSize), cursor)
		if err != nil {
			return fmt.Errorf("sweep scan: %w", err)
		}
		var expired []string
		for _, l := range listings {
			if l.ExpirationDays < today {
				expired = append(expired, l.ID)
			}
		}
		total += len(expired)
		for len(expired) > 0 {
			n := min(len(expired), batchLimit)
			if err := s.listings.DeleteBatch(ctx, expired[:n]); err != nil {
				return fmt.Errorf("sweep delete: %w", err)
			}
			expired = expired[n:]
		}
		if next == "" {
			break
		}
		cursor = next
	}
	slog.Info("expiry sweep complete", "deleted", total)
	return nil
}
