package normalize

import (
	"testing"

	"we_listings/models"
)

var windsorEssex = []string{
	"windsor", "tecumseh", "lasalle", "amherstburg", "lakeshore",
	"kingsville", "leamington", "essex", "belle river", "harrow",
	"maidstone", "mcgregor", "cottam", "stoney point", "staples",
}

func TestCityFromAddress(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"1240 Ouellette Ave, Windsor, ON", "Windsor"},
		{"77 Talbot St | Essex | N8M 1A2", "Essex"},
		{"939 Chateau|Windsor, Ontario N8P 0E6", "Windsor"},
		{"10 Main St", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CityFromAddress(tc.address); got != tc.want {
			t.Errorf("CityFromAddress(%q) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestPostalFromAddress(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"1240 Ouellette Ave, Windsor, ON N9A 1C9", "N9A1C9"},
		{"939 Chateau|Windsor, Ontario N8P0E6", "N8P0E6"},
		{"77 Talbot St, Essex, ON", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := PostalFromAddress(tc.address); got != tc.want {
			t.Errorf("PostalFromAddress(%q) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestFilterByCity(t *testing.T) {
	listings := []models.Listing{
		{ID: "1", City: "Windsor"},
		{ID: "2", City: "LaSalle"},
		{ID: "3", City: "Toronto"},
		{ID: "4", Address: "88 Erie St S, Leamington, ON"},
		{ID: "5", Address: "1 Front Rd, London, ON"},
		{ID: "6"},
	}

	out := FilterByCity(listings, windsorEssex)
	if len(out) != 3 {
		t.Fatalf("expected 3 listings, got %d: %+v", len(out), out)
	}
	for i, wantID := range []string{"1", "2", "4"} {
		if out[i].ID != wantID {
			t.Fatalf("position %d: got id %q, want %q", i, out[i].ID, wantID)
		}
	}
}

func TestFilterByCityEmptyAllowList(t *testing.T) {
	listings := []models.Listing{{ID: "1", City: "Anywhere"}}
	if out := FilterByCity(listings, nil); len(out) != 1 {
		t.Fatalf("empty allow-list should pass everything, got %d", len(out))
	}
}
