package models

// RawRecord is an untyped listing payload as returned by the hosted actor or
// assembled from a rendered page. It only exists between acquisition and
// normalization.
type RawRecord = map[string]interface{}

// Listing source values
const (
	SourceApify   = "apify"
	SourceBrowser = "browser"
)

// Listing is the canonical listing shape every source normalizes into.
// Numeric fields are pointers so a value that failed to parse stays null
// instead of degrading to a zero or a raw string.
type Listing struct {
	ID             string       `json:"id"`
	MLSNumber      string       `json:"mlsNumber,omitempty"`
	Address        string       `json:"address,omitempty"`
	City           string       `json:"city,omitempty"`
	Province       string       `json:"province,omitempty"`
	Country        string       `json:"country,omitempty"`
	PostalCode     string       `json:"postalCode,omitempty"`
	Price          *float64     `json:"price,omitempty"`
	PriceFormatted string       `json:"priceFormatted,omitempty"`
	PriceText      string       `json:"priceText,omitempty"`
	PropertyType   string       `json:"propertyType,omitempty"`
	Description    string       `json:"description,omitempty"`
	Bedrooms       *float64     `json:"bedrooms,omitempty"`
	Bathrooms      *float64     `json:"bathrooms,omitempty"`
	SquareFeet     *float64     `json:"squareFeet,omitempty"`
	LotSize        *float64     `json:"lotSize,omitempty"`
	LotSizeText    string       `json:"lotSizeText,omitempty"`
	YearBuilt      *float64     `json:"yearBuilt,omitempty"`
	ListingURL     string       `json:"listingUrl,omitempty"`
	Brokerage      string       `json:"brokerage,omitempty"`
	LastUpdated    string       `json:"lastUpdated,omitempty"`
	Images         []string     `json:"images"`
	Agents         []Agent      `json:"agents"`
	Details        []Detail     `json:"details,omitempty"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	Source         string       `json:"source,omitempty"`
}

type Agent struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Brokerage string `json:"brokerage,omitempty"`
	Title     string `json:"title,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
