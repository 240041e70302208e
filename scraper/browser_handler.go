// Browser-based fallback for when the hosted actor is unavailable.
//
// Each region start URL (a city search page like
// https://www.realtor.ca/on/windsor/real-estate) is visited in its own page.
// The site hydrates those pages from its search API at
// /api/v1/PropertySearch, so the handler intercepts that response and parses
// it directly; when no response is captured it falls back to scraping the
// rendered listing cards. Either way the output goes through the same
// normalizer as the actor path.
//
// PropertySearch results use PascalCase keys. The fields consumed here:
//
//	Id, MlsNumber, PublicRemarks, PostalCode, RelativeURLEn
//	Property.Price        "$449,900"
//	Property.Type         "Single Family"
//	Property.Address      AddressText "123 Main St|Windsor, Ontario N9A 1A1",
//	                      Latitude/Longitude as strings
//	Property.Photo        []{HighResPath, MedResPath, LowResPath}
//	Building.Bedrooms     "3" or "3 + 1" (above and below grade)
//	Building.BathroomTotal, Building.SizeInterior
//	Individual            agents with Phones and Organization (brokerage)
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"we_listings/config"
	"we_listings/models"
	"we_listings/normalize"
)

// browserPage is the thin slice of page automation the handler needs.
// Production wraps a playwright page; tests substitute a fake.
type browserPage interface {
	Navigate(url string) error
	ClickVisible(selector string) bool
	Content() (string, error)
	CapturedSearch() []byte
	Wait(ms int)
	Close()
}

var consentSelectors = []string{
	"button:has-text('Consent')",
	"button:text-is('Consent')",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[class*='consent']",
	"#didomi-notice-agree-button",
	"button:has-text('Accept')",
	"button:has-text('Accept All')",
	"button:has-text('I Accept')",
	"button:has-text('Agree')",
	"button:has-text('OK')",
}

var blockTriggers = []string{
	"Request unsuccessful. Incapsula",
	"Incapsula incident ID",
	"Access Denied",
	"This request was blocked",
}

var challengeSelectors = []string{
	"iframe#main-iframe",
	"[id*='checkbox']",
	"input[type='checkbox']",
	"button:has-text('Verify')",
	"button:has-text('Continue')",
}

type BrowserHandler struct {
	cfg *config.Config

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool

	// newPage and delay are swapped by tests to avoid a real browser and
	// real sleeps.
	newPage func() (browserPage, error)
	delay   func(minMs, maxMs int)
}

func NewBrowserHandler(cfg *config.Config) *BrowserHandler {
	h := &BrowserHandler{cfg: cfg}
	h.newPage = h.newPlaywrightPage
	h.delay = humanDelay
	return h
}

func (h *BrowserHandler) ID() string {
	return models.SourceBrowser
}

// Scrape walks the region's start URLs in order. A failure on one URL is
// logged and the rest still run; the whole scrape fails only when every URL
// does.
func (h *BrowserHandler) Scrape(ctx context.Context, region *config.RegionConfig) ([]models.Listing, error) {
	defer h.Close()

	listings := []models.Listing{}
	failed := 0

	for i, startURL := range region.StartURLs {
		select {
		case <-ctx.Done():
			return listings, ctx.Err()
		default:
		}

		found, err := h.scrapeSearchPage(startURL)
		if err != nil {
			log.Printf("[browser] %s: %v", startURL, err)
			failed++
			continue
		}
		log.Printf("[browser] %s: %d listings", startURL, len(found))
		listings = append(listings, found...)

		if i < len(region.StartURLs)-1 {
			h.delay(2000, 5000)
		}
	}

	if failed > 0 && failed == len(region.StartURLs) {
		return nil, fmt.Errorf("all %d start URLs failed", failed)
	}
	return listings, nil
}

func (h *BrowserHandler) scrapeSearchPage(startURL string) ([]models.Listing, error) {
	page, err := h.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Navigate(startURL); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	h.dismissConsent(page)
	h.waitForResults(page)

	if body := page.CapturedSearch(); len(body) > 0 {
		return parseSearchResponse(body)
	}

	content, err := page.Content()
	if err != nil {
		return nil, err
	}
	listings := parseListingCards(content)
	if len(listings) == 0 {
		return nil, fmt.Errorf("no listings on page")
	}
	return listings, nil
}

func (h *BrowserHandler) dismissConsent(page browserPage) {
	for _, selector := range consentSelectors {
		if page.ClickVisible(selector) {
			log.Printf("[browser] dismissed consent: %s", selector)
			page.Wait(2000)
			return
		}
	}
}

// waitForResults polls until the search response is captured or listing
// cards show up in the DOM, clicking through block challenges on the way.
func (h *BrowserHandler) waitForResults(page browserPage) {
	for i := 0; i < 20; i++ {
		page.Wait(500)

		if len(page.CapturedSearch()) > 0 {
			return
		}

		content, _ := page.Content()
		if strings.Contains(content, "listingCard") || strings.Contains(content, "ResultsPaginationCon") {
			return
		}
		if trigger := detectBlockPage(content); trigger != "" {
			log.Printf("[browser] block page detected: %s", trigger)
			h.passChallenge(page)
		}
	}
	log.Println("[browser] timed out waiting for results")
}

func detectBlockPage(content string) string {
	for _, t := range blockTriggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}

func (h *BrowserHandler) passChallenge(page browserPage) {
	page.Wait(2000)
	for _, selector := range challengeSelectors {
		if page.ClickVisible(selector) {
			log.Printf("[browser] clicked challenge element: %s", selector)
			page.Wait(3000)
			return
		}
	}
}

func humanDelay(minMs, maxMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond)
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(h.cfg.Browser.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		h.pw.Stop()
		h.pw = nil
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}

// playwrightPage adapts a real page to the browserPage interface and holds
// the intercepted search response.
type playwrightPage struct {
	page playwright.Page

	mu       sync.Mutex
	captured []byte
}

func (h *BrowserHandler) newPlaywrightPage() (browserPage, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := h.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	p := &playwrightPage{page: page}
	page.OnResponse(func(response playwright.Response) {
		if strings.Contains(response.URL(), "/api/v1/PropertySearch") && response.Status() == 200 {
			go func() {
				body, err := response.Body()
				if err != nil || len(body) < 500 {
					return
				}
				p.mu.Lock()
				p.captured = body
				p.mu.Unlock()
				log.Printf("[browser] intercepted PropertySearch: %d bytes", len(body))
			}()
		}
	})
	return p, nil
}

func (p *playwrightPage) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return err
	}

	// Human-ish pointer movement and a short scroll after load.
	p.page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	p.page.WaitForTimeout(float64(200 + rand.Intn(300)))
	p.page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 100+rand.Intn(300)))
	return nil
}

func (p *playwrightPage) ClickVisible(selector string) bool {
	el := p.page.Locator(selector).First()
	if visible, _ := el.IsVisible(); !visible {
		return false
	}
	return el.Click() == nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) CapturedSearch() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captured
}

func (p *playwrightPage) Wait(ms int) {
	p.page.WaitForTimeout(float64(ms))
}

func (p *playwrightPage) Close() {
	p.page.Close()
}

// parseSearchResponse decodes an intercepted PropertySearch payload and
// rebuilds each result as a camelCase raw record for the normalizer.
func parseSearchResponse(data []byte) ([]models.Listing, error) {
	var resp struct {
		Results []searchResult `json:"Results"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("undecodable search response: %w", err)
	}

	listings := []models.Listing{}
	for i := range resp.Results {
		if l := normalize.Record(resp.Results[i].record()); l != nil {
			listings = append(listings, *l)
		}
	}
	return listings, nil
}

type searchPhone struct {
	PhoneType   string `json:"PhoneType"`
	PhoneNumber string `json:"PhoneNumber"`
	AreaCode    string `json:"AreaCode"`
}

type searchResult struct {
	ID            interface{} `json:"Id"`
	MlsNumber     string      `json:"MlsNumber"`
	PublicRemarks string      `json:"PublicRemarks"`
	PostalCode    string      `json:"PostalCode"`
	RelativeURLEn string      `json:"RelativeURLEn"`
	Property      struct {
		Price   string `json:"Price"`
		Type    string `json:"Type"`
		Address struct {
			AddressText string `json:"AddressText"`
			Longitude   string `json:"Longitude"`
			Latitude    string `json:"Latitude"`
		} `json:"Address"`
		Photo []struct {
			HighResPath string `json:"HighResPath"`
			MedResPath  string `json:"MedResPath"`
			LowResPath  string `json:"LowResPath"`
		} `json:"Photo"`
	} `json:"Property"`
	Building struct {
		Bedrooms      interface{} `json:"Bedrooms"`
		BathroomTotal interface{} `json:"BathroomTotal"`
		SizeInterior  string      `json:"SizeInterior"`
	} `json:"Building"`
	Individual []struct {
		Name         string        `json:"Name"`
		Position     string        `json:"Position"`
		Phones       []searchPhone `json:"Phones"`
		Organization struct {
			Name   string        `json:"Name"`
			Phones []searchPhone `json:"Phones"`
		} `json:"Organization"`
	} `json:"Individual"`
}

func (r *searchResult) record() models.RawRecord {
	raw := models.RawRecord{}

	if r.ID != nil {
		raw["id"] = r.ID
	}
	if r.MlsNumber != "" {
		raw["mlsNumber"] = r.MlsNumber
	}
	if addr := r.Property.Address.AddressText; addr != "" {
		raw["addressText"] = addr
		if city := normalize.CityFromAddress(addr); city != "" {
			raw["city"] = city
		}
	}
	if r.PostalCode != "" {
		raw["postalCode"] = r.PostalCode
	}
	if r.Property.Price != "" {
		raw["price"] = r.Property.Price
	}
	if r.Property.Type != "" {
		raw["propertyType"] = r.Property.Type
	}
	if r.PublicRemarks != "" {
		raw["description"] = r.PublicRemarks
	}
	if r.RelativeURLEn != "" {
		raw["url"] = r.RelativeURLEn
	}

	images := []interface{}{}
	for _, p := range r.Property.Photo {
		if p.HighResPath != "" {
			images = append(images, p.HighResPath)
		} else if p.MedResPath != "" {
			images = append(images, p.MedResPath)
		} else if p.LowResPath != "" {
			images = append(images, p.LowResPath)
		}
	}
	if len(images) > 0 {
		raw["images"] = images
	}

	building := map[string]interface{}{}
	if beds := bedroomTotal(r.Building.Bedrooms); beds != nil {
		building["bedrooms"] = beds
	}
	if r.Building.BathroomTotal != nil {
		building["bathrooms"] = r.Building.BathroomTotal
	}
	if r.Building.SizeInterior != "" {
		building["sizeInterior"] = r.Building.SizeInterior
	}
	if len(building) > 0 {
		raw["building"] = building
	}

	if r.Property.Address.Latitude != "" && r.Property.Address.Longitude != "" {
		raw["coordinates"] = map[string]interface{}{
			"lat": r.Property.Address.Latitude,
			"lng": r.Property.Address.Longitude,
		}
	}

	agents := []interface{}{}
	for _, ind := range r.Individual {
		agent := map[string]interface{}{}
		if ind.Name != "" {
			agent["name"] = ind.Name
		}
		if ind.Position != "" {
			agent["title"] = ind.Position
		}
		if phone := pickPhone(ind.Phones); phone != "" {
			agent["phone"] = phone
		}
		if ind.Organization.Name != "" {
			agent["brokerage"] = ind.Organization.Name
		}
		if len(agent) > 0 {
			agents = append(agents, agent)
		}
	}
	if len(agents) > 0 {
		raw["agents"] = agents
	}

	return raw
}

// bedroomTotal folds "3 + 1" style counts (above and below grade) into one
// number. Anything unparseable passes through for the normalizer to try.
func bedroomTotal(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}

	total := 0
	found := false
	for _, part := range strings.Split(s, "+") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			total += n
			found = true
		}
	}
	if !found {
		return s
	}
	return total
}

func pickPhone(phones []searchPhone) string {
	for _, p := range phones {
		if p.PhoneType == "Telephone" && p.AreaCode != "" && p.PhoneNumber != "" {
			return p.AreaCode + "-" + p.PhoneNumber
		}
	}
	if len(phones) > 0 && phones[0].AreaCode != "" && phones[0].PhoneNumber != "" {
		return phones[0].AreaCode + "-" + phones[0].PhoneNumber
	}
	return ""
}

// parseListingCards scrapes the rendered result cards. The cards carry less
// than the search API but are still there when interception comes up empty.
func parseListingCards(content string) []models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	listings := []models.Listing{}
	doc.Find(".listingCard").Each(func(_ int, card *goquery.Selection) {
		raw := models.RawRecord{}

		if addr := cardText(card, ".listingCardAddress"); addr != "" {
			raw["addressText"] = addr
			if city := normalize.CityFromAddress(addr); city != "" {
				raw["city"] = city
			}
			if postal := normalize.PostalFromAddress(addr); postal != "" {
				raw["postalCode"] = postal
			}
		}
		if price := cardText(card, ".listingCardPrice"); price != "" {
			raw["price"] = price
		}
		if mls := cardText(card, ".listingCardMLS"); mls != "" {
			if i := strings.LastIndex(mls, ":"); i >= 0 {
				mls = strings.TrimSpace(mls[i+1:])
			}
			raw["mlsNumber"] = mls
		}
		if href, ok := card.Find("a.listingDetailsLink").First().Attr("href"); ok && href != "" {
			raw["url"] = href
		}
		if src, ok := card.Find("img").First().Attr("src"); ok && src != "" {
			raw["images"] = []interface{}{src}
		}

		building := map[string]interface{}{}
		if beds := cardText(card, ".listingCardBedIconNum"); beds != "" {
			building["bedrooms"] = bedroomTotal(beds)
		}
		if baths := cardText(card, ".listingCardBathIconNum"); baths != "" {
			building["bathrooms"] = baths
		}
		if len(building) > 0 {
			raw["building"] = building
		}

		if l := normalize.Record(raw); l != nil {
			listings = append(listings, *l)
		}
	})

	return listings
}

func cardText(card *goquery.Selection, selector string) string {
	return strings.TrimSpace(card.Find(selector).First().Text())
}
