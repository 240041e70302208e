package scraper

import (
	"context"

	"we_listings/config"
	"we_listings/models"
)

// Handler is one way of acquiring listings for a region. Implementations
// normalize their own payloads and return canonical listings; filtering and
// deduplication happen downstream in the orchestrator.
type Handler interface {
	ID() string
	Scrape(ctx context.Context, region *config.RegionConfig) ([]models.Listing, error)
}
