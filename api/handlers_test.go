package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"we_listings/cache"
	"we_listings/config"
	"we_listings/models"
	"we_listings/scraper"
	"we_listings/services"
)

type fakeScraper struct {
	listings []models.Listing
	err      error
}

func (f *fakeScraper) ScrapeListings(ctx context.Context, regionID string) ([]models.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func floatPtr(v float64) *float64 { return &v }

func apiListings() []models.Listing {
	return []models.Listing{
		{ID: "26001716", City: "Windsor", PropertyType: "Single Family", Price: floatPtr(450000), Bedrooms: floatPtr(3), Bathrooms: floatPtr(2), Source: "apify"},
		{ID: "26002200", City: "LaSalle", PropertyType: "Condo/Apt", Price: floatPtr(700000), Bedrooms: floatPtr(2), Bathrooms: floatPtr(2), Source: "apify"},
	}
}

func newTestAPI(t *testing.T, scr *fakeScraper) (http.Handler, *services.ListingService) {
	t.Helper()
	cfg := &config.Config{
		Regions: map[string]*config.RegionConfig{
			config.DefaultRegionID: {ID: config.DefaultRegionID, Name: "Windsor-Essex", Cities: []string{"Windsor", "LaSalle"}},
		},
	}
	svc := services.NewListingService(scr, cache.New(cache.NewMemoryStore()), nil)
	orch := scraper.NewOrchestrator(cfg, nil)
	market := services.NewMarketService(http.DefaultClient)
	return NewRouter(cfg, svc, market, orch, nil), svc
}

func doRequest(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetListingsEmptyCache(t *testing.T) {
	router, _ := newTestAPI(t, &fakeScraper{})

	rec := doRequest(router, http.MethodGet, "/api/listings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var resp models.ScrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 || resp.Listings == nil || len(resp.Listings) != 0 {
		t.Fatalf("expected empty listing set, got %+v", resp)
	}
}

func TestGetListingsFiltersSnapshot(t *testing.T) {
	scr := &fakeScraper{listings: apiListings()}
	router, svc := newTestAPI(t, scr)
	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/listings?city=windsor&max_price=500000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.ScrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Listings[0].ID != "26001716" {
		t.Fatalf("wrong filtered result: %+v", resp)
	}
	if resp.Source != "apify" {
		t.Fatalf("source = %q, want apify", resp.Source)
	}
	if _, err := time.Parse(time.RFC3339, resp.LastUpdated); err != nil {
		t.Fatalf("lastUpdated not RFC3339: %q", resp.LastUpdated)
	}
}

func TestGetListingsUnknownRegion(t *testing.T) {
	router, _ := newTestAPI(t, &fakeScraper{})

	rec := doRequest(router, http.MethodGet, "/api/listings?region=mars")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRefreshScrapesAndServes(t *testing.T) {
	scr := &fakeScraper{listings: apiListings()}
	router, svc := newTestAPI(t, scr)

	rec := doRequest(router, http.MethodPost, "/api/listings/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.ScrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || resp.Source != "apify" {
		t.Fatalf("unexpected response: count=%d source=%q", resp.Count, resp.Source)
	}

	if _, ok := svc.Get(config.DefaultRegionID, services.Filters{}); !ok {
		t.Fatal("refresh should have populated the cache")
	}
}

func TestRefreshErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"paused", scraper.ErrPaused, http.StatusServiceUnavailable},
		{"no sources", scraper.ErrNoSources, http.StatusServiceUnavailable},
		{"failure with empty cache", errors.New("actor run failed"), http.StatusBadGateway},
	}

	for _, tc := range cases {
		router, _ := newTestAPI(t, &fakeScraper{err: tc.err})
		rec := doRequest(router, http.MethodPost, "/api/listings/refresh")
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestRefreshFailureServesStaleCache(t *testing.T) {
	scr := &fakeScraper{listings: apiListings()}
	router, svc := newTestAPI(t, scr)
	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	scr.err = errors.New("actor run failed")
	rec := doRequest(router, http.MethodPost, "/api/listings/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from stale cache", rec.Code)
	}

	var resp models.ScrapeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "cache" {
		t.Fatalf("source = %q, want cache", resp.Source)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
}

func TestStatsEndpoint(t *testing.T) {
	scr := &fakeScraper{listings: apiListings()}
	router, svc := newTestAPI(t, scr)

	rec := doRequest(router, http.MethodGet, "/api/listings/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var empty models.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if empty.Count != 0 {
		t.Fatalf("count = %d before any scrape", empty.Count)
	}

	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	rec = doRequest(router, http.MethodGet, "/api/listings/stats")
	var stats models.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Count != 2 || stats.ByCity["Windsor"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMarketStatsRejectsBadParams(t *testing.T) {
	router, _ := newTestAPI(t, &fakeScraper{})

	for _, target := range []string{
		"/api/market-stats?year=2026&month=13",
		"/api/market-stats?month=5",
		"/api/market-stats?year=twenty&month=5",
	} {
		rec := doRequest(router, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	scr := &fakeScraper{listings: apiListings()}
	router, svc := newTestAPI(t, scr)

	rec := doRequest(router, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	scraperStatus, ok := body["scraper"].(map[string]interface{})
	if !ok || scraperStatus["paused"] != false {
		t.Fatalf("unexpected scraper status: %v", body["scraper"])
	}
	if _, present := body["cachedListings"]; present {
		t.Fatal("cachedListings should be absent before any scrape")
	}

	if _, err := svc.Refresh(context.Background(), config.DefaultRegionID); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	rec = doRequest(router, http.MethodGet, "/api/health")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cachedListings"] != float64(2) {
		t.Fatalf("cachedListings = %v, want 2", body["cachedListings"])
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestAPI(t, &fakeScraper{})

	rec := doRequest(router, http.MethodOptions, "/api/listings")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("allow-origin = %q", origin)
	}
}
