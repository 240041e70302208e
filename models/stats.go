package models

// Stats aggregates a listing set for the stats endpoint. Averages skip
// listings whose field is null rather than counting them as zero.
type Stats struct {
	Count         int            `json:"count"`
	AveragePrice  *float64       `json:"averagePrice,omitempty"`
	MinPrice      *float64       `json:"minPrice,omitempty"`
	MaxPrice      *float64       `json:"maxPrice,omitempty"`
	AvgBedrooms   *float64       `json:"avgBedrooms,omitempty"`
	AvgBathrooms  *float64       `json:"avgBathrooms,omitempty"`
	AvgSquareFeet *float64       `json:"avgSquareFeet,omitempty"`
	ByCity        map[string]int `json:"byCity,omitempty"`
	ByType        map[string]int `json:"byType,omitempty"`
	LastUpdated   string         `json:"lastUpdated,omitempty"`
}

// MarketReport carries one month of board-published market statistics.
type MarketReport struct {
	Year        int         `json:"year"`
	Month       string      `json:"month"`
	KeyMetrics  KeyMetrics  `json:"keyMetrics"`
	SalesByType []TypeSales `json:"salesByType"`
}

type KeyMetrics struct {
	AveragePrice   int     `json:"averagePrice"`
	TotalSales     int     `json:"totalSales"`
	NewListings    int     `json:"newListings"`
	MonthsOfSupply float64 `json:"monthsOfSupply"`
}

type TypeSales struct {
	Name  string `json:"name"`
	Sales int    `json:"sales"`
}
