package services

import (
	"context"
	"math"
	"testing"

	"we_listings/identity"
	"we_listings/models"
)

func archived(address, postal, propType string, beds, baths, sqft *float64) *models.ArchivedListing {
	l := &models.ArchivedListing{
		Address:      address,
		City:         "Windsor",
		PostalCode:   postal,
		PropertyType: propType,
		Bedrooms:     beds,
		Bathrooms:    baths,
		SquareFeet:   sqft,
	}
	l.Fingerprint = address + postal
	return l
}

func scoreFor(t *testing.T, incoming, candidate *models.ArchivedListing) (float64, []string, bool) {
	t.Helper()
	base := baseAddress(identity.NormalizeAddress(incoming.Address))
	return scorePotentialMatch(incoming, candidate, base)
}

func TestScoreSameAddressCapsAtNinetyFive(t *testing.T) {
	incoming := archived("939 Chateau Avenue", "N8P 0E6", "Single Family", floatPtr(3), floatPtr(2), floatPtr(1500))
	candidate := archived("939 CHATEAU AVE.", "N8P0E6", "single family", floatPtr(3), floatPtr(2), floatPtr(1550))

	confidence, reasons, ok := scoreFor(t, incoming, candidate)
	if !ok {
		t.Fatal("expected a match")
	}
	if confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", confidence)
	}
	if reasons[0] != "same_address" {
		t.Fatalf("expected same_address first, got %v", reasons)
	}
}

func TestScoreBaseAddressAcrossUnits(t *testing.T) {
	incoming := archived("150 Park St Unit 402", "", "", nil, nil, nil)
	candidate := archived("150 Park St Unit 317", "", "", nil, nil, nil)

	confidence, reasons, ok := scoreFor(t, incoming, candidate)
	if !ok {
		t.Fatal("expected a match")
	}
	if confidence != 0.75 {
		t.Fatalf("confidence = %v, want 0.75", confidence)
	}
	if len(reasons) != 1 || reasons[0] != "same_base_address" {
		t.Fatalf("wrong reasons: %v", reasons)
	}
}

func TestScoreWeakPathNeedsPostalTypeAndAttributes(t *testing.T) {
	incoming := archived("10 Elm St", "N9A 1C9", "Single Family", floatPtr(3), floatPtr(2), nil)

	match := archived("99 Oak Ave", "N9A1C9", "Single Family", floatPtr(3), floatPtr(2), nil)
	confidence, _, ok := scoreFor(t, incoming, match)
	if !ok {
		t.Fatal("expected weak-path match")
	}
	if math.Abs(confidence-0.65) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.65", confidence)
	}

	oneAttr := archived("99 Oak Ave", "N9A1C9", "Single Family", floatPtr(3), nil, nil)
	if _, _, ok := scoreFor(t, incoming, oneAttr); ok {
		t.Fatal("one close attribute should not match without a shared address")
	}

	postalOnly := archived("99 Oak Ave", "N9A1C9", "", nil, nil, nil)
	if _, _, ok := scoreFor(t, incoming, postalOnly); ok {
		t.Fatal("postal alone should not match")
	}
}

func TestScoreHalfBathCountsAsClose(t *testing.T) {
	incoming := archived("77 Talbot St", "", "", floatPtr(3), floatPtr(2.5), nil)
	candidate := archived("77 Talbot Street", "", "", floatPtr(3), floatPtr(3), nil)

	_, reasons, ok := scoreFor(t, incoming, candidate)
	if !ok {
		t.Fatal("expected a match")
	}

	found := map[string]bool{}
	for _, r := range reasons {
		found[r] = true
	}
	if !found["same_beds"] || !found["close_baths"] {
		t.Fatalf("wrong attribute reasons: %v", reasons)
	}
}

func TestBaseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"150 park st unit 402", "150 park st"},
		{"150 park st apt 7", "150 park st"},
		{"1500 ouellette ave s 12", "1500 ouellette ave s"},
		{"939 chateau ave", "939 chateau ave"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := baseAddress(tc.in); got != tc.want {
			t.Errorf("baseAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCloseSqFt(t *testing.T) {
	cases := []struct {
		a, b float64
		want bool
	}{
		{1500, 1650, true},   // within 200
		{3000, 3250, true},   // within 10%
		{1500, 1800, false},  // beyond both bands
		{0, 1500, false},     // unknown never close
		{-100, 1500, false},
	}

	for _, tc := range cases {
		if got := closeSqFt(tc.a, tc.b); got != tc.want {
			t.Errorf("closeSqFt(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRecordPotentialMatchesGuards(t *testing.T) {
	svc := NewMatchService(nil)
	ctx := context.Background()

	if n, err := svc.RecordPotentialMatches(ctx, nil); n != 0 || err != nil {
		t.Fatalf("nil incoming: %d, %v", n, err)
	}
	if n, err := svc.RecordPotentialMatches(ctx, &models.ArchivedListing{City: "Windsor"}); n != 0 || err != nil {
		t.Fatalf("missing address: %d, %v", n, err)
	}
	if n, err := svc.RecordPotentialMatches(ctx, &models.ArchivedListing{Address: "10 Elm St"}); n != 0 || err != nil {
		t.Fatalf("missing city: %d, %v", n, err)
	}
}
