package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"we_listings/models"
)

// MarketService scrapes the monthly WECAR board report. The board publishes
// each month as a static page of AmCharts scripts, so the numbers live inside
// the dataProvider arrays of a handful of well-known js files.
type MarketService struct {
	client  *http.Client
	baseURL string
}

const wecarBaseURL = "https://wecartech.com/wecfiles/stats_new"

var (
	dataProviderRe  = regexp.MustCompile(`(?s)dataProvider"\s*:\s*(\[[^\]]*\])`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	availableRe     = regexp.MustCompile(`Available Listings[^:]*:\s*([0-9,]+)`)
)

func NewMarketService(client *http.Client) *MarketService {
	return &MarketService{client: client, baseURL: wecarBaseURL}
}

// ScrapeMonth fetches and parses the report for one month.
func (m *MarketService) ScrapeMonth(ctx context.Context, year int, month time.Month) (*models.MarketReport, error) {
	monthKey := strings.ToLower(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("Jan"))
	yearKey := strconv.Itoa(year)
	pageURL := fmt.Sprintf("%s/%d/%s/", m.baseURL, year, monthKey)

	page, err := m.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch report page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse report page: %w", err)
	}

	referenced := map[string]bool{}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			referenced[src] = true
		}
	})

	// chartData fetches one referenced js file and extracts its dataProvider
	// rows. An unreferenced file yields nothing rather than an error; months
	// early in publication are missing charts.
	chartData := func(name string) ([]map[string]interface{}, string, error) {
		if !referenced[name] {
			return nil, "", nil
		}
		js, err := m.get(ctx, pageURL+name)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", name, err)
		}
		return parseDataProvider(js), js, nil
	}

	avgData, _, err := chartData("js/avgprice.js")
	if err != nil {
		return nil, err
	}
	avgPrice := yearColumn(findMonthEntry(avgData, monthKey), yearKey)

	salesData, _, err := chartData("js/sales.js")
	if err != nil {
		return nil, err
	}
	totalSales := yearColumn(findMonthEntry(salesData, monthKey), yearKey)

	listingsData, listingsJS, err := chartData("js/mamonth.js")
	if err != nil {
		return nil, err
	}
	newListings := yearColumn(findMonthEntry(listingsData, monthKey), yearKey)

	available := 0
	if match := availableRe.FindStringSubmatch(listingsJS); match != nil {
		available = parseCount(match[1])
	}
	monthsOfSupply := 0.0
	if totalSales > 0 {
		monthsOfSupply = math.Round(float64(available)/float64(totalSales)*100) / 100
	}

	resData, _, err := chartData("js/resmonth.js")
	if err != nil {
		return nil, err
	}
	salesByType := make([]models.TypeSales, 0, len(resData))
	for _, entry := range resData {
		name, _ := entry["category"].(string)
		salesByType = append(salesByType, models.TypeSales{
			Name:  name,
			Sales: numericField(entry, "units sold"),
		})
	}

	return &models.MarketReport{
		Year:  year,
		Month: month.String(),
		KeyMetrics: models.KeyMetrics{
			AveragePrice:   avgPrice,
			TotalSales:     totalSales,
			NewListings:    newListings,
			MonthsOfSupply: monthsOfSupply,
		},
		SalesByType: salesByType,
	}, nil
}

// PreviousMonth returns the month before now, the report most recently
// published.
func PreviousMonth(now time.Time) (int, time.Month) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

func (m *MarketService) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseDataProvider pulls the dataProvider array out of an AmCharts config.
// The board's files carry trailing commas, which get stripped before
// unmarshalling. Anything unparseable yields no rows.
func parseDataProvider(js string) []map[string]interface{} {
	match := dataProviderRe.FindStringSubmatch(js)
	if match == nil {
		return nil
	}

	cleaned := trailingCommaRe.ReplaceAllString(match[1], "$1")

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &rows); err != nil {
		return nil
	}
	return rows
}

// findMonthEntry returns the row whose month or category starts with the
// abbreviated month, case-insensitively.
func findMonthEntry(rows []map[string]interface{}, monthKey string) map[string]interface{} {
	for _, entry := range rows {
		month, ok := entry["month"].(string)
		if !ok {
			month, _ = entry["category"].(string)
		}
		if month != "" && strings.HasPrefix(strings.ToLower(month), monthKey) {
			return entry
		}
	}
	return nil
}

// yearColumn reads the numeric value the chart stores under the year key,
// e.g. {"month": "May", "2024": "1,234"}.
func yearColumn(entry map[string]interface{}, yearKey string) int {
	if entry == nil {
		return 0
	}
	return numericField(entry, yearKey)
}

func numericField(entry map[string]interface{}, key string) int {
	switch v := entry[key].(type) {
	case string:
		return parseCount(v)
	case float64:
		return int(v)
	}
	return 0
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return 0
	}
	return n
}
