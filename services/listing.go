package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"we_listings/cache"
	"we_listings/models"
)

// Scraper runs the acquisition pipeline for one region and returns canonical
// listings.
type Scraper interface {
	ScrapeListings(ctx context.Context, regionID string) ([]models.Listing, error)
}

// ListingService fronts the pipeline for the API: Refresh runs a scrape and
// swaps the cached snapshot, reads serve the snapshot as-is.
type ListingService struct {
	scraper Scraper
	cache   *cache.Cache
	archive *ArchiveService // nil when no archive database is configured
}

func NewListingService(scraper Scraper, c *cache.Cache, archive *ArchiveService) *ListingService {
	return &ListingService{scraper: scraper, cache: c, archive: archive}
}

// Refresh scrapes the region now and atomically replaces the cached snapshot.
// On acquisition failure the cache is left untouched so stale data stays
// servable.
func (s *ListingService) Refresh(ctx context.Context, regionID string) (*models.Snapshot, error) {
	listings, err := s.scraper.ScrapeListings(ctx, regionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.cache.Set(regionID, listings)
	if err != nil {
		return nil, fmt.Errorf("cache snapshot: %w", err)
	}

	if s.archive != nil {
		stats := s.archive.Record(ctx, listings)
		log.Printf("[archive] %d archived (%d new), %d media queued, %d matches, %d errors",
			stats.Archived, stats.New, stats.MediaQueued, stats.Matches, stats.Errors)
	}

	return snap, nil
}

// Filters narrows a snapshot read. Zero values mean no filtering; MinBeds and
// MinBaths are lower bounds, so beds=3 reads as "3 or more".
type Filters struct {
	City     string
	Type     string
	MinPrice float64
	MaxPrice float64
	MinBeds  float64
	MinBaths float64
	Limit    int
}

// Get serves the cached snapshot with filters applied. ok is false when no
// snapshot has been cached yet.
func (s *ListingService) Get(regionID string, f Filters) (*models.Snapshot, bool) {
	snap, ok := s.cache.Get(regionID)
	if !ok {
		return nil, false
	}

	filtered := *snap
	filtered.Listings = applyFilters(snap.Listings, f)
	return &filtered, true
}

// Stats aggregates the cached snapshot.
func (s *ListingService) Stats(regionID string) (*models.Stats, bool) {
	snap, ok := s.cache.Get(regionID)
	if !ok {
		return nil, false
	}

	stats := cache.Aggregate(snap.Listings)
	stats.LastUpdated = snap.LastUpdated
	return &stats, true
}

func applyFilters(listings []models.Listing, f Filters) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if f.City != "" && !strings.EqualFold(l.City, f.City) {
			continue
		}
		// substring match so "condo" finds "Condo/Apt" and friends
		if f.Type != "" && !strings.Contains(strings.ToLower(l.PropertyType), strings.ToLower(f.Type)) {
			continue
		}
		if f.MinPrice > 0 && (l.Price == nil || *l.Price < f.MinPrice) {
			continue
		}
		if f.MaxPrice > 0 && (l.Price == nil || *l.Price > f.MaxPrice) {
			continue
		}
		if f.MinBeds > 0 && (l.Bedrooms == nil || *l.Bedrooms < f.MinBeds) {
			continue
		}
		if f.MinBaths > 0 && (l.Bathrooms == nil || *l.Bathrooms < f.MinBaths) {
			continue
		}
		out = append(out, l)
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
