package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"we_listings/cache"
	"we_listings/config"
	"we_listings/models"
)

type fakeScraper struct {
	listings []models.Listing
	err      error
	calls    int
}

func (f *fakeScraper) ScrapeListings(ctx context.Context, regionID string) ([]models.Listing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func floatPtr(v float64) *float64 { return &v }

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "1", City: "Windsor", PropertyType: "Single Family", Price: floatPtr(450000), Bedrooms: floatPtr(3), Bathrooms: floatPtr(2)},
		{ID: "2", City: "Tecumseh", PropertyType: "Condo/Apt", Price: floatPtr(300000), Bedrooms: floatPtr(2), Bathrooms: floatPtr(1)},
		{ID: "3", City: "Windsor", PropertyType: "Single Family", Price: floatPtr(700000), Bedrooms: floatPtr(4), Bathrooms: floatPtr(3)},
		{ID: "4", City: "Windsor", PropertyType: "Vacant Land"},
	}
}

func TestRefreshUpdatesCache(t *testing.T) {
	scr := &fakeScraper{listings: sampleListings()}
	svc := NewListingService(scr, cache.New(cache.NewMemoryStore()), nil)

	snap, err := svc.Refresh(context.Background(), config.DefaultRegionID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(snap.Listings) != 4 {
		t.Fatalf("expected 4 listings, got %d", len(snap.Listings))
	}
	if _, err := time.Parse(time.RFC3339, snap.LastUpdated); err != nil {
		t.Fatalf("lastUpdated not RFC3339: %q", snap.LastUpdated)
	}

	cached, ok := svc.Get(config.DefaultRegionID, Filters{})
	if !ok {
		t.Fatal("expected cached snapshot after refresh")
	}
	if len(cached.Listings) != 4 || cached.LastUpdated != snap.LastUpdated {
		t.Fatalf("cached snapshot differs: %d listings, %q", len(cached.Listings), cached.LastUpdated)
	}
}

func TestRefreshFailureLeavesCache(t *testing.T) {
	scr := &fakeScraper{listings: sampleListings()}
	svc := NewListingService(scr, cache.New(cache.NewMemoryStore()), nil)

	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	scr.err = errors.New("all sources failed")
	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err == nil {
		t.Fatal("expected refresh error")
	}

	snap, ok := svc.Get(config.DefaultRegionID, Filters{})
	if !ok || len(snap.Listings) != 4 {
		t.Fatal("stale snapshot should survive a failed refresh")
	}
}

func TestGetWithoutSnapshot(t *testing.T) {
	svc := NewListingService(&fakeScraper{}, cache.New(cache.NewMemoryStore()), nil)

	if _, ok := svc.Get(config.DefaultRegionID, Filters{}); ok {
		t.Fatal("expected miss on empty cache")
	}
	if _, ok := svc.Stats(config.DefaultRegionID); ok {
		t.Fatal("expected stats miss on empty cache")
	}
}

func TestApplyFilters(t *testing.T) {
	listings := sampleListings()

	cases := []struct {
		name    string
		filters Filters
		wantIDs []string
	}{
		{"none", Filters{}, []string{"1", "2", "3", "4"}},
		{"city", Filters{City: "windsor"}, []string{"1", "3", "4"}},
		{"type substring", Filters{Type: "condo"}, []string{"2"}},
		{"min price excludes unpriced", Filters{MinPrice: 400000}, []string{"1", "3"}},
		{"max price", Filters{MaxPrice: 500000}, []string{"1", "2"}},
		{"price band", Filters{MinPrice: 350000, MaxPrice: 500000}, []string{"1"}},
		{"min beds", Filters{MinBeds: 3}, []string{"1", "3"}},
		{"min baths", Filters{MinBaths: 3}, []string{"3"}},
		{"limit", Filters{Limit: 2}, []string{"1", "2"}},
		{"combined", Filters{City: "Windsor", MinBeds: 3, Limit: 1}, []string{"1"}},
	}

	for _, tc := range cases {
		got := applyFilters(listings, tc.filters)
		if len(got) != len(tc.wantIDs) {
			t.Errorf("%s: got %d listings, want %d", tc.name, len(got), len(tc.wantIDs))
			continue
		}
		for i, l := range got {
			if l.ID != tc.wantIDs[i] {
				t.Errorf("%s: listing %d = %s, want %s", tc.name, i, l.ID, tc.wantIDs[i])
			}
		}
	}
}

func TestGetFilteredLeavesCacheIntact(t *testing.T) {
	scr := &fakeScraper{listings: sampleListings()}
	svc := NewListingService(scr, cache.New(cache.NewMemoryStore()), nil)

	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	filtered, _ := svc.Get(config.DefaultRegionID, Filters{City: "Tecumseh"})
	if len(filtered.Listings) != 1 {
		t.Fatalf("expected 1 filtered listing, got %d", len(filtered.Listings))
	}

	full, _ := svc.Get(config.DefaultRegionID, Filters{})
	if len(full.Listings) != 4 {
		t.Fatalf("filtering mutated the cached snapshot: %d listings", len(full.Listings))
	}
}

func TestStatsFromSnapshot(t *testing.T) {
	scr := &fakeScraper{listings: sampleListings()}
	svc := NewListingService(scr, cache.New(cache.NewMemoryStore()), nil)

	snap, err := svc.Refresh(context.Background(), config.DefaultRegionID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	stats, ok := svc.Stats(config.DefaultRegionID)
	if !ok {
		t.Fatal("expected stats after refresh")
	}
	if stats.Count != 4 {
		t.Fatalf("count = %d, want 4", stats.Count)
	}
	if stats.AveragePrice == nil || *stats.AveragePrice != (450000+300000+700000)/3.0 {
		t.Fatalf("wrong average price: %v", stats.AveragePrice)
	}
	if stats.ByCity["Windsor"] != 3 {
		t.Fatalf("wrong Windsor count: %d", stats.ByCity["Windsor"])
	}
	if stats.LastUpdated != snap.LastUpdated {
		t.Fatalf("stats lastUpdated %q != snapshot %q", stats.LastUpdated, snap.LastUpdated)
	}
}
