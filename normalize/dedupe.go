package normalize

import (
	"strings"

	"we_listings/models"
)

// DedupeKey is the identity a listing deduplicates on: MLS number, listing
// URL, or address, whichever is present first, lowercased.
func DedupeKey(l models.Listing) string {
	for _, candidate := range []string{l.MLSNumber, l.ListingURL, l.Address} {
		if candidate != "" {
			return strings.ToLower(candidate)
		}
	}
	return ""
}

// Dedupe keeps the first listing seen for each key and silently drops
// listings that have no key at all.
func Dedupe(listings []models.Listing) []models.Listing {
	unique := []models.Listing{}
	seen := map[string]bool{}
	for _, l := range listings {
		key := DedupeKey(l)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, l)
	}
	return unique
}
