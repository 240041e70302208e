package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"we_listings/config"
	"we_listings/models"
	"we_listings/scraper"
	"we_listings/services"
	"we_listings/storage"
)

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	cfg      *config.Config
	listings *services.ListingService
	market   *services.MarketService
	orch     *scraper.Orchestrator
	archive  *storage.PostgresStore // nil when no archive database is configured
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cfg *config.Config, listings *services.ListingService, market *services.MarketService, orch *scraper.Orchestrator, archive *storage.PostgresStore) *Handlers {
	return &Handlers{cfg: cfg, listings: listings, market: market, orch: orch, archive: archive}
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"scraper": h.orch.Status(),
	}

	if snap, ok := h.listings.Get(config.DefaultRegionID, services.Filters{}); ok {
		status["cachedListings"] = len(snap.Listings)
		status["lastUpdated"] = snap.LastUpdated
	}

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if n, err := h.archive.CountActive(ctx); err == nil {
			status["archivedActive"] = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// GetListings handles GET /api/listings
func (h *Handlers) GetListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	region := h.cfg.Region(q.Get("region"))
	if region == nil {
		http.Error(w, "unknown region", http.StatusNotFound)
		return
	}

	filters := services.Filters{
		City: q.Get("city"),
		Type: q.Get("type"),
	}
	if v := q.Get("min_price"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinPrice = val
		}
	}
	if v := q.Get("max_price"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MaxPrice = val
		}
	}
	if v := q.Get("beds"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinBeds = val
		}
	}
	if v := q.Get("baths"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinBaths = val
		}
	}
	if v := q.Get("limit"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 && val <= 500 {
			filters.Limit = val
		}
	}

	snap, ok := h.listings.Get(region.ID, filters)
	if !ok {
		// Nothing scraped yet. An empty set lets clients render their empty
		// state instead of an error page.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.ScrapeResponse{Listings: []models.Listing{}})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scrapeResponse(snap, ""))
}

// RefreshListings handles POST /api/listings/refresh
func (h *Handlers) RefreshListings(w http.ResponseWriter, r *http.Request) {
	region := h.cfg.Region(r.URL.Query().Get("region"))
	if region == nil {
		http.Error(w, "unknown region", http.StatusNotFound)
		return
	}

	snap, err := h.listings.Refresh(r.Context(), region.ID)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrNoSources), errors.Is(err, scraper.ErrPaused):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			log.Printf("[api] refresh %s failed: %v", region.ID, err)
			// Acquisition failed outright. Stale data beats no data.
			if stale, ok := h.listings.Get(region.ID, services.Filters{}); ok {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(scrapeResponse(stale, "cache"))
				return
			}
			http.Error(w, "all listing sources failed and nothing is cached", http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scrapeResponse(snap, ""))
}

// GetStats handles GET /api/listings/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	region := h.cfg.Region(r.URL.Query().Get("region"))
	if region == nil {
		http.Error(w, "unknown region", http.StatusNotFound)
		return
	}

	stats, ok := h.listings.Stats(region.ID)
	if !ok {
		stats = &models.Stats{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetMarketStats handles GET /api/market-stats
func (h *Handlers) GetMarketStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, month := services.PreviousMonth(time.Now())
	if q.Get("year") != "" || q.Get("month") != "" {
		y, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			http.Error(w, "year must be numeric", http.StatusBadRequest)
			return
		}
		m, err := strconv.Atoi(q.Get("month"))
		if err != nil || m < 1 || m > 12 {
			http.Error(w, "month must be 1-12", http.StatusBadRequest)
			return
		}
		year, month = y, time.Month(m)
	}

	report, err := h.market.ScrapeMonth(r.Context(), year, month)
	if err != nil {
		log.Printf("[api] market stats %d-%02d: %v", year, int(month), err)
		http.Error(w, "market report unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// scrapeResponse wraps a snapshot in the wire shape clients consume. source
// overrides the per-listing stamp; the degraded-refresh path uses "cache" so
// clients can tell stale data from fresh.
func scrapeResponse(snap *models.Snapshot, source string) models.ScrapeResponse {
	if source == "" && len(snap.Listings) > 0 {
		source = snap.Listings[0].Source
	}
	return models.ScrapeResponse{
		Listings:    snap.Listings,
		Count:       len(snap.Listings),
		LastUpdated: snap.LastUpdated,
		Source:      source,
	}
}
