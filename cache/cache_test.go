package cache

import (
	"testing"
	"time"

	"we_listings/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	if _, ok, _ := s.Get("missing"); ok {
		t.Fatal("expected a miss on a fresh store")
	}

	if err := s.Set("k", []byte("v1")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(v) != "v1" {
		t.Fatalf("got %q, want v1", v)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Fatal("expected a miss after delete")
	}
}

func TestCacheSetAndGet(t *testing.T) {
	c := New(NewMemoryStore())

	listings := []models.Listing{
		{ID: "W1", MLSNumber: "W100", City: "Windsor", Price: floatPtr(450000)},
		{ID: "W2", MLSNumber: "W200", City: "Tecumseh"},
	}

	snap, err := c.Set("windsor-essex", listings)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if len(snap.Listings) != 2 {
		t.Fatalf("expected 2 listings in the snapshot, got %d", len(snap.Listings))
	}
	if _, err := time.Parse(time.RFC3339, snap.LastUpdated); err != nil {
		t.Fatalf("lastUpdated %q is not RFC 3339: %v", snap.LastUpdated, err)
	}

	got, ok := c.Get("windsor-essex")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.LastUpdated != snap.LastUpdated {
		t.Fatalf("timestamp changed on read: %s vs %s", got.LastUpdated, snap.LastUpdated)
	}
	if len(got.Listings) != 2 || got.Listings[0].ID != "W1" {
		t.Fatalf("unexpected listings %+v", got.Listings)
	}
	if got.Listings[0].Price == nil || *got.Listings[0].Price != 450000 {
		t.Fatalf("price did not survive the round trip: %v", got.Listings[0].Price)
	}
}

func TestCacheMiss(t *testing.T) {
	c := New(NewMemoryStore())
	if _, ok := c.Get("windsor-essex"); ok {
		t.Fatal("expected a miss on an empty cache")
	}
}

func TestCacheCorruptEntryReadsAsMiss(t *testing.T) {
	store := NewMemoryStore()
	store.Set(Key("windsor-essex"), []byte("{not json"))

	c := New(store)
	if _, ok := c.Get("windsor-essex"); ok {
		t.Fatal("a corrupt entry should read as a miss")
	}
}

func TestCacheSetNilListings(t *testing.T) {
	c := New(NewMemoryStore())

	snap, err := c.Set("windsor-essex", nil)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if snap.Listings == nil || len(snap.Listings) != 0 {
		t.Fatalf("expected an empty slice, got %#v", snap.Listings)
	}

	got, _ := c.Get("windsor-essex")
	if got.Listings == nil {
		t.Fatal("listings should stay an array through the round trip")
	}
}

func TestCacheClear(t *testing.T) {
	c := New(NewMemoryStore())
	if _, err := c.Set("windsor-essex", []models.Listing{{ID: "W1"}}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Clear("windsor-essex"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := c.Get("windsor-essex"); ok {
		t.Fatal("expected a miss after clear")
	}
}

func TestCacheKeysAreRegionScoped(t *testing.T) {
	c := New(NewMemoryStore())
	c.Set("windsor-essex", []models.Listing{{ID: "W1"}})
	c.Set("chatham-kent", []models.Listing{{ID: "C1"}})

	we, _ := c.Get("windsor-essex")
	ck, _ := c.Get("chatham-kent")
	if we.Listings[0].ID != "W1" || ck.Listings[0].ID != "C1" {
		t.Fatalf("regions bled into each other: %+v %+v", we.Listings, ck.Listings)
	}
	if Key("windsor-essex") != "listings:windsor-essex" {
		t.Fatalf("unexpected key %s", Key("windsor-essex"))
	}
}

func TestAggregate(t *testing.T) {
	listings := []models.Listing{
		{City: "Windsor", PropertyType: "Single Family", Price: floatPtr(400000), Bedrooms: floatPtr(3), Bathrooms: floatPtr(2), SquareFeet: floatPtr(1500)},
		{City: "Windsor", PropertyType: "Condo", Price: floatPtr(200000), Bedrooms: floatPtr(1)},
		{City: "Tecumseh", PropertyType: "Single Family", Price: floatPtr(600000)},
		{City: "LaSalle"},
	}

	stats := Aggregate(listings)
	if stats.Count != 4 {
		t.Fatalf("expected count 4, got %d", stats.Count)
	}
	if stats.AveragePrice == nil || *stats.AveragePrice != 400000 {
		t.Fatalf("expected average price 400000 over the 3 priced listings, got %v", stats.AveragePrice)
	}
	if stats.MinPrice == nil || *stats.MinPrice != 200000 {
		t.Fatalf("expected min 200000, got %v", stats.MinPrice)
	}
	if stats.MaxPrice == nil || *stats.MaxPrice != 600000 {
		t.Fatalf("expected max 600000, got %v", stats.MaxPrice)
	}
	if stats.AvgBedrooms == nil || *stats.AvgBedrooms != 2 {
		t.Fatalf("expected 2 average bedrooms, got %v", stats.AvgBedrooms)
	}
	if stats.AvgBathrooms == nil || *stats.AvgBathrooms != 2 {
		t.Fatalf("expected 2 average bathrooms from the single value, got %v", stats.AvgBathrooms)
	}
	if stats.AvgSquareFeet == nil || *stats.AvgSquareFeet != 1500 {
		t.Fatalf("expected 1500 average sqft, got %v", stats.AvgSquareFeet)
	}
	if stats.ByCity["Windsor"] != 2 || stats.ByCity["Tecumseh"] != 1 || stats.ByCity["LaSalle"] != 1 {
		t.Fatalf("unexpected city counts %v", stats.ByCity)
	}
	if stats.ByType["Single Family"] != 2 || stats.ByType["Condo"] != 1 {
		t.Fatalf("unexpected type counts %v", stats.ByType)
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil)
	if stats.Count != 0 {
		t.Fatalf("expected count 0, got %d", stats.Count)
	}
	if stats.AveragePrice != nil || stats.MinPrice != nil || stats.MaxPrice != nil {
		t.Fatal("price stats should be nil with no listings")
	}
	if len(stats.ByCity) != 0 || len(stats.ByType) != 0 {
		t.Fatal("expected empty groupings")
	}
}
