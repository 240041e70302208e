package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"we_listings/httputil"
	"we_listings/models"
	"we_listings/storage"
)

// HealthcheckWorker samples active archive rows that have not been seen for a
// while and checks whether their listing pages are still live. Dead pages get
// the row delisted; live pages refresh last_seen_at and pick up price changes.
type HealthcheckWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// NewHealthcheckWorker wires the worker. The client should be the scraping
// client: proxied, and redirects surfaced instead of followed, because a
// redirect off a listing page usually means it was pulled.
func NewHealthcheckWorker(store *storage.PostgresStore, client *http.Client) *HealthcheckWorker {
	return &HealthcheckWorker{
		store:      store,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult contains the outcome of checking one listing page.
type CheckResult struct {
	IsLive       bool
	StatusCode   int
	CurrentPrice *float64
	Err          error
}

// Check probes a listing URL: a cheap HEAD first, then a full GET when the
// HEAD fails or is rejected. Only the GET can re-extract the price.
func (w *HealthcheckWorker) Check(ctx context.Context, listingURL string) CheckResult {
	result := w.checkHEAD(ctx, listingURL)
	// realtor.ca intermittently answers HEAD with 405.
	if result.Err == nil && result.StatusCode != 405 {
		return result
	}
	return w.checkGET(ctx, listingURL)
}

func (w *HealthcheckWorker) checkHEAD(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "HEAD", listingURL, nil)
	if err != nil {
		return CheckResult{Err: err}
	}
	httputil.BrowserHeaders(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Err: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case 200:
		result.IsLive = true
	case 404, 410:
		result.IsLive = false
	case 301, 302:
		result.IsLive = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		// Blocks and throttles are not delistings.
		result.IsLive = true
	}

	return result
}

func (w *HealthcheckWorker) checkGET(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return CheckResult{Err: err}
	}
	httputil.BrowserHeaders(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Err: err}
	}
	defer resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case 200:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 500*1024))
		if err != nil {
			result.IsLive = true
			return result
		}
		html := string(body)
		if isDelistedPage(html) {
			result.IsLive = false
			return result
		}
		result.IsLive = true
		result.CurrentPrice = extractPrice(html)
	case 404, 410:
		result.IsLive = false
	case 301, 302:
		result.IsLive = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		result.IsLive = true
	}

	return result
}

// isDelistedPage checks a 200 body for signs the listing was removed; the
// site serves a search page instead of a hard 404 for some pulled URLs.
func isDelistedPage(html string) bool {
	indicators := []string{
		"this listing is no longer available",
		"listing has been removed",
		"property is no longer listed",
		"propertysearchtypeid",
	}
	htmlLower := strings.ToLower(html)
	for _, indicator := range indicators {
		if strings.Contains(htmlLower, indicator) {
			return true
		}
	}
	return false
}

// isDelistRedirect checks whether a redirect target points away from a
// listing page.
func isDelistRedirect(location string) bool {
	patterns := []string{
		"/map",
		"/search",
		"propertysearchtypeid",
		"notfound",
		"error",
	}
	locationLower := strings.ToLower(location)
	for _, pattern := range patterns {
		if strings.Contains(locationLower, pattern) {
			return true
		}
	}
	return false
}

var (
	jsonLDPriceRe = regexp.MustCompile(`"price"\s*:\s*"(\d+(?:\.\d+)?)"`)
	jsPriceRe     = regexp.MustCompile(`price:\s*'(\d+(?:\.\d+)?)'`)
	dataPriceRe   = regexp.MustCompile(`data-value-cad="\$?([\d,]+)`)
)

// extractPrice digs the asking price out of a listing page: JSON-LD first,
// then the inline JS variable, then the data attribute.
func extractPrice(html string) *float64 {
	if m := jsonLDPriceRe.FindStringSubmatch(html); len(m) > 1 {
		if price, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &price
		}
	}

	if m := jsPriceRe.FindStringSubmatch(html); len(m) > 1 {
		if price, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &price
		}
	}

	if m := dataPriceRe.FindStringSubmatch(html); len(m) > 1 {
		raw := strings.ReplaceAll(m[1], ",", "")
		if price, err := strconv.ParseFloat(raw, 64); err == nil {
			return &price
		}
	}

	return nil
}

// Run starts the healthcheck loop. staleAfter controls how long a row can go
// unseen before it is rechecked.
func (w *HealthcheckWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleAfter, batchSize)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.processBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *HealthcheckWorker) processBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	listings, err := w.store.StaleActive(ctx, staleAfter, batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}

	if len(listings) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(listings))

	var checked, delisted, priceChanges int
	for i := range listings {
		l := &listings[i]
		if l.ListingURL == "" {
			continue
		}

		result := w.Check(ctx, l.ListingURL)
		checked++
		now := time.Now().UTC()

		if result.Err != nil {
			log.Printf("Healthcheck: error checking %s: %v", l.ListingURL, result.Err)
			// Push the row back in the queue rather than hammering a URL
			// that will not answer.
			if err := w.store.MarkSeen(ctx, l.ID, now); err != nil {
				log.Printf("Healthcheck: failed to mark seen %s: %v", l.ID, err)
			}
			continue
		}

		if !result.IsLive {
			log.Printf("Healthcheck: listing delisted (status %d): %s", result.StatusCode, l.ListingURL)
			if err := w.store.MarkDelisted(ctx, l.ID, now); err != nil {
				log.Printf("Healthcheck: failed to mark delisted %s: %v", l.ID, err)
			} else {
				delisted++
			}
		} else {
			// UpdatePrice stamps last_seen_at itself, so MarkSeen only
			// runs when the price did not move.
			seen := false
			if result.CurrentPrice != nil && l.Price != nil && *result.CurrentPrice != *l.Price {
				log.Printf("Healthcheck: price change %s: $%.0f -> $%.0f", l.ListingURL, *l.Price, *result.CurrentPrice)
				if err := w.store.UpdatePrice(ctx, l.ID, *result.CurrentPrice, now); err != nil {
					log.Printf("Healthcheck: failed to update price %s: %v", l.ID, err)
				} else {
					priceChanges++
					seen = true
				}
			}
			if !seen {
				if err := w.store.MarkSeen(ctx, l.ID, now); err != nil {
					log.Printf("Healthcheck: failed to mark seen %s: %v", l.ID, err)
				}
			}
		}

		// Rate limit between requests
		time.Sleep(500 * time.Millisecond)
	}

	if delisted > 0 || priceChanges > 0 {
		log.Printf("Healthcheck: checked %d, delisted %d, price changes %d", checked, delisted, priceChanges)
		msg := fmt.Sprintf("Checked %d listings", checked)
		if delisted > 0 {
			msg += fmt.Sprintf(", %d delisted", delisted)
		}
		if priceChanges > 0 {
			msg += fmt.Sprintf(", %d price changes", priceChanges)
		}
		w.logFunc(models.LogLevelInfo, "healthcheck", msg)
	}
}
