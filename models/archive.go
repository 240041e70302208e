package models

import (
	"encoding/json"
	"time"
)

// ArchivedListing is the long-term archive row for a listing, keyed by the
// address/beds/baths/sqft/type fingerprint so the same property relisted
// under a new MLS number folds into one record.
type ArchivedListing struct {
	ID           string     `json:"id" db:"id"`
	Fingerprint  string     `json:"fingerprint" db:"fingerprint"`
	MLSNumber    string     `json:"mls_number" db:"mls_number"`
	Address      string     `json:"address" db:"address"`
	City         string     `json:"city" db:"city"`
	Province     string     `json:"province" db:"province"`
	PostalCode   string     `json:"postal_code" db:"postal_code"`
	PropertyType string     `json:"property_type" db:"property_type"`
	Price        *float64   `json:"price" db:"price"`
	Bedrooms     *float64   `json:"bedrooms" db:"bedrooms"`
	Bathrooms    *float64   `json:"bathrooms" db:"bathrooms"`
	SquareFeet   *float64   `json:"sqft" db:"sqft"`
	ListingURL   string     `json:"listing_url" db:"listing_url"`
	Description  string     `json:"description" db:"description"`
	AgentName    string     `json:"agent_name" db:"agent_name"`
	Brokerage    string     `json:"brokerage" db:"brokerage"`
	FirstSeenAt  time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at" db:"last_seen_at"`
	TimesSeen    int        `json:"times_seen" db:"times_seen"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	DelistedAt   *time.Time `json:"delisted_at" db:"delisted_at"`

	// EnrichmentAttempts counts detail-page fetches so the worker stops
	// retrying listings whose pages never parse.
	EnrichmentAttempts int `json:"enrichment_attempts" db:"enrichment_attempts"`
}

// Enrichment carries the fields a detail-page fetch can add to an archive
// row. Empty strings and nil numbers leave the stored values alone.
type Enrichment struct {
	Description string
	SquareFeet  *float64
	AgentName   string
	Brokerage   string
}

// Media tracks one mirrored listing image. S3Key stays null until the upload
// lands.
type Media struct {
	ID            int64     `json:"id" db:"id"`
	ListingID     string    `json:"listing_id" db:"listing_id"`
	OriginalURL   string    `json:"original_url" db:"original_url"`
	S3Key         *string   `json:"s3_key" db:"s3_key"`
	ContentHash   string    `json:"content_hash" db:"content_hash"`
	MimeType      string    `json:"mime_type" db:"mime_type"`
	FileSizeBytes *int64    `json:"file_size_bytes" db:"file_size_bytes"`
	Status        string    `json:"status" db:"status"`
	Attempts      int       `json:"attempts" db:"attempts"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
	MediaStatusFailed   = "failed"
)

// ListingMatch records a suspected duplicate between two archive rows whose
// fingerprints differ but whose fields look alike.
type ListingMatch struct {
	ID                  int64           `json:"id" db:"id"`
	MatchedFingerprint  string          `json:"matched_fingerprint" db:"matched_fingerprint"`
	IncomingFingerprint string          `json:"incoming_fingerprint" db:"incoming_fingerprint"`
	Confidence          float64         `json:"confidence" db:"confidence"`
	Reasons             json.RawMessage `json:"reasons" db:"reasons"`
	Status              string          `json:"status" db:"status"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

const (
	MatchStatusPending   = "pending"
	MatchStatusConfirmed = "confirmed"
	MatchStatusRejected  = "rejected"
)
