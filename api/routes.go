package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"we_listings/config"
	"we_listings/scraper"
	"we_listings/services"
	"we_listings/storage"
)

// NewRouter creates and configures the Chi router. archive may be nil when no
// archive database is configured; the affected endpoints degrade gracefully.
func NewRouter(cfg *config.Config, listings *services.ListingService, market *services.MarketService, orch *scraper.Orchestrator, archive *storage.PostgresStore) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(Logger)
	r.Use(CORS)

	// Create handlers
	h := NewHandlers(cfg, listings, market, orch, archive)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/listings", h.GetListings)
		r.Post("/listings/refresh", h.RefreshListings)
		r.Get("/listings/stats", h.GetStats)
		r.Get("/market-stats", h.GetMarketStats)
	})

	return r
}
