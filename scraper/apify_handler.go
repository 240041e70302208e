package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"we_listings/config"
	"we_listings/models"
)

const (
	apifyAPIBase     = "https://api.apify.com/v2"
	apifyRunTimeout  = 10 * time.Minute
	apifyRunPollWait = 10 * time.Second

	// Datasets trail the run by a few seconds on Apify's side. Readiness is
	// polled on a short window and a timeout is not fatal: collection
	// proceeds and may legitimately find an empty result.
	datasetReadyTimeout = 120 * time.Second
	datasetPollWait     = 5 * time.Second
	datasetPageLimit    = 500
)

// ApifyHandler runs a hosted actor against the region's start URLs and
// collects the normalized output from its default dataset.
type ApifyHandler struct {
	apiKey   string
	maxItems int
	client   *http.Client
	adapter  ActorAdapter
	baseURL  string
}

func NewApifyHandler(cfg *config.Config) *ApifyHandler {
	return &ApifyHandler{
		apiKey:   cfg.Apify.APIKey,
		maxItems: cfg.Apify.MaxItems,
		client:   &http.Client{Timeout: 60 * time.Second},
		adapter:  NewActorAdapter(cfg.Apify.ActorID),
		baseURL:  apifyAPIBase,
	}
}

func (h *ApifyHandler) ID() string {
	return models.SourceApify
}

// Configured reports whether the hosted actor can be called at all. The
// orchestrator checks this before any network traffic so a missing key falls
// straight through to the backup source.
func (h *ApifyHandler) Configured() bool {
	return h.apiKey != ""
}

func (h *ApifyHandler) Scrape(ctx context.Context, region *config.RegionConfig) ([]models.Listing, error) {
	if !h.Configured() {
		return nil, fmt.Errorf("APIFY_API_KEY is not set")
	}

	runID, err := h.startRun(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to start actor run: %w", err)
	}
	log.Printf("[apify] run started: %s (actor: %s)", runID, h.adapter.ActorID())

	datasetID, err := h.waitForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("actor run failed: %w", err)
	}
	log.Printf("[apify] run finished, dataset: %s", datasetID)

	h.waitForDataset(ctx, datasetID)

	listings, err := h.fetchDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	log.Printf("[apify] %d listings normalized from dataset %s", len(listings), datasetID)
	return listings, nil
}

func (h *ApifyHandler) startRun(ctx context.Context, region *config.RegionConfig) (string, error) {
	input := h.adapter.BuildInput(region, h.maxItems)
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/acts/%s/runs?token=%s", h.baseURL, h.adapter.ActorID(), h.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("apify returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}

// waitForRun polls the run until it reaches a terminal status and returns
// the default dataset id on success.
func (h *ApifyHandler) waitForRun(ctx context.Context, runID string) (string, error) {
	url := fmt.Sprintf("%s/actor-runs/%s?token=%s", h.baseURL, runID, h.apiKey)
	deadline := time.Now().Add(apifyRunTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return "", err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return "", err
		}

		var result struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return "", err
		}

		switch result.Data.Status {
		case "SUCCEEDED":
			return result.Data.DefaultDatasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("run %s ended with status %s", runID, result.Data.Status)
		}

		time.Sleep(apifyRunPollWait)
	}
	return "", fmt.Errorf("run %s did not finish within %s", runID, apifyRunTimeout)
}

// waitForDataset blocks until the dataset serves at least one item or the
// readiness window runs out. Timing out only logs a warning.
func (h *ApifyHandler) waitForDataset(ctx context.Context, datasetID string) {
	url := fmt.Sprintf("%s/datasets/%s/items?token=%s&format=json&clean=true&limit=1", h.baseURL, datasetID, h.apiKey)
	deadline := time.Now().Add(datasetReadyTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return
		}
		resp, err := h.client.Do(req)
		if err != nil {
			log.Printf("[apify] dataset readiness check failed: %v", err)
			time.Sleep(datasetPollWait)
			continue
		}
		var items []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if err == nil && len(items) > 0 {
			return
		}

		time.Sleep(datasetPollWait)
	}
	log.Printf("[apify] dataset %s not ready after %s, collecting anyway", datasetID, datasetReadyTimeout)
}

// fetchDataset pages through the dataset and normalizes each item. Items
// that fail to decode are skipped, not fatal.
func (h *ApifyHandler) fetchDataset(ctx context.Context, datasetID string) ([]models.Listing, error) {
	listings := []models.Listing{}

	for offset := 0; ; {
		url := fmt.Sprintf("%s/datasets/%s/items?token=%s&format=json&clean=true&limit=%d&offset=%d",
			h.baseURL, datasetID, h.apiKey, datasetPageLimit, offset)

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("dataset fetch returned %d: %s", resp.StatusCode, string(respBody))
		}

		var items []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			listing, err := h.adapter.ParseItem(item)
			if err != nil {
				log.Printf("[apify] skipping dataset item: %v", err)
				continue
			}
			if listing == nil {
				continue
			}
			listings = append(listings, *listing)
		}

		offset += len(items)
		if len(items) < datasetPageLimit {
			break
		}
	}

	return listings, nil
}
