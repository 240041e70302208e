package scraper

import (
	"encoding/json"
	"fmt"

	"we_listings/config"
	"we_listings/models"
	"we_listings/normalize"
)

// ActorAdapter covers the actor-specific parts of a hosted scrape: the run
// input shape and per-item output parsing. The REST flow around it is the
// same for any actor.
type ActorAdapter interface {
	ActorID() string
	BuildInput(region *config.RegionConfig, maxItems int) map[string]interface{}
	ParseItem(data json.RawMessage) (*models.Listing, error)
}

// NewActorAdapter returns the adapter for a configured actor id. Only the
// realtor.ca search actor is wired today; the id still passes through so a
// fork of the actor works without a code change.
func NewActorAdapter(actorID string) ActorAdapter {
	return &realtorCAAdapter{actorID: actorID}
}

type realtorCAAdapter struct {
	actorID string
}

func (a *realtorCAAdapter) ActorID() string { return a.actorID }

func (a *realtorCAAdapter) BuildInput(region *config.RegionConfig, maxItems int) map[string]interface{} {
	startURLs := make([]map[string]string, 0, len(region.StartURLs))
	for _, u := range region.StartURLs {
		startURLs = append(startURLs, map[string]string{"url": u})
	}
	if maxItems <= 0 {
		maxItems = region.MaxItems
	}
	return map[string]interface{}{
		"startUrls":     startURLs,
		"maxItems":      maxItems,
		"includeCondos": true,
		"proxyConfig": map[string]interface{}{
			"useApifyProxy": true,
		},
	}
}

// ParseItem decodes one dataset item and runs it through the normalizer.
// A nil listing with a nil error means the record carried no usable identity
// and should be skipped quietly.
func (a *realtorCAAdapter) ParseItem(data json.RawMessage) (*models.Listing, error) {
	var raw models.RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("undecodable dataset item: %w", err)
	}
	return normalize.Record(raw), nil
}
