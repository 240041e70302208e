package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"we_listings/config"
	"we_listings/models"
	"we_listings/normalize"
	"we_listings/storage"
)

var (
	// ErrPaused is returned while scraping is paused via the command queue.
	ErrPaused = errors.New("scraping is paused")

	// ErrNoSources is returned when neither the hosted actor nor the browser
	// fallback is configured.
	ErrNoSources = errors.New("no listing sources configured")
)

// Orchestrator tries each listing source in order of preference and runs
// the shared post-pipeline (city filter, dedupe, source stamp) on whatever
// comes back. Every attempt is recorded as a scrape run.
type Orchestrator struct {
	cfg     *config.Config
	store   *storage.SQLiteStore
	sources []Handler

	mu     sync.Mutex
	paused bool
}

// preflighter lets a handler opt out before any network traffic, e.g. when
// its credentials are missing.
type preflighter interface {
	Configured() bool
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		store:   store,
		sources: []Handler{NewApifyHandler(cfg)},
	}
	if cfg.Browser.Enabled {
		o.sources = append(o.sources, NewBrowserHandler(cfg))
	}
	return o
}

// ScrapeListings acquires, filters and dedupes listings for one region.
// The hosted actor goes first; the browser handler picks up when the actor
// is unconfigured or fails. A source that succeeds with zero listings is
// trusted, not second-guessed by the fallback.
func (o *Orchestrator) ScrapeListings(ctx context.Context, regionID string) ([]models.Listing, error) {
	if o.IsPaused() {
		return nil, ErrPaused
	}

	region := o.cfg.Region(regionID)
	if region == nil {
		return nil, fmt.Errorf("unknown region %q", regionID)
	}

	var lastErr error
	attempted := 0
	for _, handler := range o.sources {
		if p, ok := handler.(preflighter); ok && !p.Configured() {
			log.Printf("[scrape] %s not configured, skipping", handler.ID())
			continue
		}
		attempted++

		listings, err := o.runHandler(ctx, handler, region)
		if err != nil {
			lastErr = err
			o.log(models.LogLevelError, handler.ID(), fmt.Sprintf("%s scrape failed: %v", handler.ID(), err))
			continue
		}
		return listings, nil
	}

	if attempted == 0 {
		return nil, ErrNoSources
	}
	return nil, fmt.Errorf("all sources failed: %w", lastErr)
}

func (o *Orchestrator) runHandler(ctx context.Context, handler Handler, region *config.RegionConfig) ([]models.Listing, error) {
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		Handler:   handler.ID(),
		Region:    region.ID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		if err := o.store.CreateRun(run); err != nil {
			log.Printf("[scrape] failed to record run: %v", err)
		}
	}

	listings, err := handler.Scrape(ctx, region)
	run.ListingsFound = len(listings)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount = 1
		run.ErrorMessage = err.Error()
		o.finishRun(run)
		return nil, err
	}

	kept := normalize.Dedupe(normalize.FilterByCity(listings, region.Cities))
	for i := range kept {
		kept[i].Source = handler.ID()
	}

	run.Status = models.RunStatusCompleted
	run.ListingsKept = len(kept)
	o.finishRun(run)

	o.log(models.LogLevelInfo, handler.ID(), fmt.Sprintf(
		"%s: %d scraped, %d kept after filter and dedupe", handler.ID(), len(listings), len(kept)))
	return kept, nil
}

func (o *Orchestrator) finishRun(run *models.ScrapeRun) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if o.store != nil {
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("[scrape] failed to update run %s: %v", run.ID, err)
		}
	}
}

// log writes to both the process log and the persistent scrape log.
func (o *Orchestrator) log(level models.LogLevel, handler, msg string) {
	log.Printf("[scrape] %s", msg)
	if o.store != nil {
		if err := o.store.Log(level, handler, msg); err != nil {
			log.Printf("[scrape] failed to persist log entry: %v", err)
		}
	}
}

func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.paused {
		o.paused = true
		log.Println("[scrape] paused")
	}
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paused {
		o.paused = false
		log.Println("[scrape] resumed")
	}
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Status summarizes scraper state for the health endpoint.
type Status struct {
	Paused   bool                  `json:"paused"`
	Handlers []models.HandlerStats `json:"handlers,omitempty"`
}

func (o *Orchestrator) Status() Status {
	s := Status{Paused: o.IsPaused()}
	if o.store != nil {
		if stats, err := o.store.HandlerStats(); err == nil {
			s.Handlers = stats
		}
	}
	return s
}
