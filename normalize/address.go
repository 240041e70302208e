package normalize

import (
	"regexp"
	"strings"

	"we_listings/models"
)

var trailingPostal = regexp.MustCompile(`(?i)([A-Z]\d[A-Z])\s*(\d[A-Z]\d)$`)

// CityFromAddress guesses the city from a composed address string: the
// segment before the trailing province or postal part. Source addresses mix
// pipe and comma separators ("939 Chateau|Windsor, Ontario N8P 0E6"), so
// both split. Approximate by nature; callers must validate the result
// against a known-city list.
func CityFromAddress(address string) string {
	fields := strings.FieldsFunc(address, func(r rune) bool {
		return r == '|' || r == ','
	})
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// PostalFromAddress pulls a trailing Canadian postal code out of a composed
// address, compacted to uppercase without the inner space.
func PostalFromAddress(address string) string {
	m := trailingPostal.FindStringSubmatch(strings.TrimSpace(address))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1] + m[2])
}

// FilterByCity keeps listings whose city is in the allowed list. Listings
// without a city get one rescue attempt via the address heuristic; whatever
// still resolves outside the list is dropped. Runs before deduplication so
// out-of-region records never occupy a dedupe slot.
func FilterByCity(listings []models.Listing, allowed []string) []models.Listing {
	if len(allowed) == 0 {
		return listings
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, city := range allowed {
		allowedSet[strings.ToLower(strings.TrimSpace(city))] = true
	}

	kept := []models.Listing{}
	for _, l := range listings {
		city := l.City
		if city == "" {
			city = CityFromAddress(l.Address)
		}
		if allowedSet[strings.ToLower(city)] {
			kept = append(kept, l)
		}
	}
	return kept
}
