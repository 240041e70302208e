package models

// Snapshot is the cached result of a full pipeline run. It is stored as a
// single blob and swapped atomically, so readers never observe a half-written
// listing set.
type Snapshot struct {
	Listings    []Listing `json:"listings"`
	LastUpdated string    `json:"lastUpdated"`
}

// ScrapeResponse is the wire shape served to API clients.
type ScrapeResponse struct {
	Listings    []Listing `json:"listings"`
	Count       int       `json:"count"`
	LastUpdated string    `json:"lastUpdated"`
	Source      string    `json:"source,omitempty"`
}
