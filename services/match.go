package services

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"we_listings/identity"
	"we_listings/models"
	"we_listings/storage"
)

// MatchService flags archive rows that are probably the same property under
// different fingerprints: renumbered units, re-measured square footage,
// listings with and without a postal code.
type MatchService struct {
	store *storage.PostgresStore
}

func NewMatchService(store *storage.PostgresStore) *MatchService {
	return &MatchService{store: store}
}

// RecordPotentialMatches scores the incoming row against the active rows in
// its city and persists every pair that clears the confidence bar. Returns
// the number of matches recorded.
func (s *MatchService) RecordPotentialMatches(ctx context.Context, incoming *models.ArchivedListing) (int, error) {
	if incoming == nil || incoming.Address == "" || incoming.City == "" {
		return 0, nil
	}

	candidates, err := s.store.ActiveInCity(ctx, incoming.City)
	if err != nil {
		return 0, err
	}

	baseIncoming := baseAddress(identity.NormalizeAddress(incoming.Address))
	inserted := 0
	now := time.Now().UTC()

	for i := range candidates {
		candidate := &candidates[i]
		if candidate.Fingerprint == incoming.Fingerprint {
			continue
		}

		confidence, reasons, ok := scorePotentialMatch(incoming, candidate, baseIncoming)
		if !ok {
			continue
		}

		reasonsJSON, _ := json.Marshal(reasons)
		match := &models.ListingMatch{
			MatchedFingerprint:  candidate.Fingerprint,
			IncomingFingerprint: incoming.Fingerprint,
			Confidence:          confidence,
			Reasons:             reasonsJSON,
			Status:              models.MatchStatusPending,
			CreatedAt:           now,
		}

		if err := s.store.InsertMatch(ctx, match); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

// scorePotentialMatch grades a candidate pair. A shared (base) address is a
// strong signal; without one the pair must agree on postal code, type, and at
// least two attributes to register at all.
func scorePotentialMatch(incoming, candidate *models.ArchivedListing, baseIncoming string) (float64, []string, bool) {
	reasons := []string{}
	strongAddress := false
	sameAddress := false

	incomingNorm := identity.NormalizeAddress(incoming.Address)
	candidateNorm := identity.NormalizeAddress(candidate.Address)

	if incomingNorm != "" && candidateNorm != "" && incomingNorm == candidateNorm {
		reasons = append(reasons, "same_address")
		strongAddress = true
		sameAddress = true
	} else if baseIncoming != "" {
		baseCandidate := baseAddress(candidateNorm)
		if baseCandidate != "" && baseCandidate == baseIncoming {
			reasons = append(reasons, "same_base_address")
			strongAddress = true
		}
	}

	samePostal := incoming.PostalCode != "" && candidate.PostalCode != "" &&
		compactPostal(incoming.PostalCode) == compactPostal(candidate.PostalCode)
	if samePostal {
		reasons = append(reasons, "same_postal")
	}

	sameType := incoming.PropertyType != "" && candidate.PropertyType != "" &&
		strings.EqualFold(incoming.PropertyType, candidate.PropertyType)
	if sameType {
		reasons = append(reasons, "same_property_type")
	}

	closeAttrCount := 0
	if incoming.Bedrooms != nil && candidate.Bedrooms != nil {
		switch diff := math.Abs(*incoming.Bedrooms - *candidate.Bedrooms); {
		case diff < 0.5:
			reasons = append(reasons, "same_beds")
			closeAttrCount++
		case diff <= 1:
			reasons = append(reasons, "close_beds")
			closeAttrCount++
		}
	}
	if incoming.Bathrooms != nil && candidate.Bathrooms != nil {
		switch diff := math.Abs(*incoming.Bathrooms - *candidate.Bathrooms); {
		case diff < 0.5:
			reasons = append(reasons, "same_baths")
			closeAttrCount++
		case diff <= 1:
			reasons = append(reasons, "close_baths")
			closeAttrCount++
		}
	}
	if incoming.SquareFeet != nil && candidate.SquareFeet != nil &&
		closeSqFt(*incoming.SquareFeet, *candidate.SquareFeet) {
		reasons = append(reasons, "close_sqft")
		closeAttrCount++
	}

	if !strongAddress {
		if !(samePostal && sameType && closeAttrCount >= 2) {
			return 0, nil, false
		}
		confidence := 0.55 + 0.05*float64(closeAttrCount)
		if confidence > 0.85 {
			confidence = 0.85
		}
		return confidence, reasons, true
	}

	confidence := 0.75
	if sameAddress {
		confidence = 0.9
	}
	confidence += 0.03 * float64(closeAttrCount)
	if samePostal {
		confidence += 0.03
	}
	if sameType {
		confidence += 0.03
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return confidence, reasons, true
}

// baseAddress strips unit markers and a trailing lot number from a normalized
// address, leaving the street identity two listings for the same building
// share.
func baseAddress(normalized string) string {
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return ""
	}

	unitTokens := map[string]bool{
		"apt":  true,
		"unit": true,
		"ste":  true,
		"fl":   true,
		"bldg": true,
	}

	for i, part := range parts {
		if unitTokens[part] {
			parts = parts[:i]
			break
		}
	}

	if len(parts) >= 4 && isNumericToken(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, " ")
}

func isNumericToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func closeSqFt(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	diff := math.Abs(a - b)
	if diff <= 200 {
		return true
	}
	return diff <= 0.1*math.Max(a, b)
}

func compactPostal(postal string) string {
	return strings.ToUpper(strings.ReplaceAll(postal, " ", ""))
}
