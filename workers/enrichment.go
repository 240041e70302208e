package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"we_listings/httputil"
	"we_listings/models"
	"we_listings/normalize"
	"we_listings/storage"
)

// EnrichmentWorker fetches listing detail pages to backfill archive rows that
// the feed payloads left thin: full description, square footage, agent and
// brokerage, plus the photo set beyond the feed's first handful.
type EnrichmentWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
}

// NewEnrichmentWorker wires the worker. The client should be the scraping
// client, so detail fetches ride the proxy and see redirects as-is.
func NewEnrichmentWorker(store *storage.PostgresStore, client *http.Client) *EnrichmentWorker {
	return &EnrichmentWorker{store: store, httpClient: client}
}

// ListingDetails is what a detail page yields.
type ListingDetails struct {
	Description string
	SquareFeet  *float64
	Photos      []string
	AgentName   string
	Brokerage   string
}

// FetchDetails downloads and parses one listing page. Redirects and 404s both
// read as the listing being gone; the healthcheck handles the delisting.
func (w *EnrichmentWorker) FetchDetails(ctx context.Context, listingURL string) (*ListingDetails, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httputil.BrowserHeaders(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
	case 301, 302, 404:
		return nil, fmt.Errorf("listing gone: %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return ParseListingDetails(resp.Body)
}

// ParseListingDetails pulls the enrichment fields out of a realtor.ca detail
// page.
func ParseListingDetails(r io.Reader) (*ListingDetails, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	details := &ListingDetails{}

	doc.Find("#imageListOuterCon img.gridViewListingImage").Each(func(i int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			details.Photos = append(details.Photos, src)
		}
	})

	details.Description = strings.TrimSpace(doc.Find("#propertyDescriptionCon").Text())

	// "1,888 sqft", occasionally a "1100 - 1500 sqft" band; the first number
	// wins either way.
	if raw := detailValue(doc, "#propertyDetailsSectionContentSubCon_SquareFootage"); raw != "" {
		details.SquareFeet = normalize.Number(raw)
	}

	details.AgentName = strings.TrimSpace(doc.Find(".realtorCardCon").First().Find(".realtorCardName").Text())
	details.Brokerage = strings.TrimSpace(doc.Find(".officeCardCon").First().Find(".officeCardName").Text())

	return details, nil
}

func detailValue(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector + " .propertyDetailsSectionContentValue").Text())
}

// Run polls for rows needing enrichment until the context is cancelled.
func (w *EnrichmentWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Enrichment worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *EnrichmentWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.NeedingEnrichment(ctx, batchSize)
	if err != nil {
		log.Printf("Enrichment: query error: %v", err)
		return
	}

	if len(listings) == 0 {
		return
	}

	log.Printf("Enrichment: processing %d listings", len(listings))

	for i := range listings {
		l := &listings[i]

		details, err := w.FetchDetails(ctx, l.ListingURL)
		if err != nil {
			log.Printf("Enrichment: failed %s: %v", l.ListingURL, err)
			// An empty save still burns an attempt, so dead pages age out.
			if err := w.store.SaveEnrichment(ctx, l.ID, &models.Enrichment{}); err != nil {
				log.Printf("Enrichment: failed to record attempt %s: %v", l.ID, err)
			}
			continue
		}

		update := &models.Enrichment{
			Description: details.Description,
			SquareFeet:  details.SquareFeet,
			AgentName:   details.AgentName,
			Brokerage:   details.Brokerage,
		}
		if err := w.store.SaveEnrichment(ctx, l.ID, update); err != nil {
			log.Printf("Enrichment: failed to save %s: %v", l.ID, err)
			continue
		}

		if len(details.Photos) > 0 {
			if err := w.store.EnqueueMedia(ctx, l.ID, details.Photos); err != nil {
				log.Printf("Enrichment: failed to queue photos %s: %v", l.ID, err)
			}
		}

		log.Printf("Enrichment: enriched %s (%d photos)", l.Address, len(details.Photos))

		// Rate limit between requests
		time.Sleep(500 * time.Millisecond)
	}
}
