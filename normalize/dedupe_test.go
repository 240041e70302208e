package normalize

import (
	"testing"

	"we_listings/models"
)

func TestDedupeFirstSeenWins(t *testing.T) {
	a := models.Listing{ID: "1", MLSNumber: "W100", Price: floatPtr(400000)}
	b := models.Listing{ID: "2", MLSNumber: "w100", Price: floatPtr(425000)}
	c := models.Listing{ID: "3", MLSNumber: "W200"}

	out := Dedupe([]models.Listing{a, b, c})
	if len(out) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(out))
	}
	if out[0].ID != "1" {
		t.Fatalf("first occurrence should win, got id %q", out[0].ID)
	}
	if *out[0].Price != 400000 {
		t.Fatalf("kept listing should keep its fields, got %v", *out[0].Price)
	}
	if out[1].ID != "3" {
		t.Fatalf("wrong second listing: %q", out[1].ID)
	}
}

func TestDedupeKeyCascade(t *testing.T) {
	byMLS := models.Listing{MLSNumber: "W100", ListingURL: "https://www.realtor.ca/a", Address: "10 Main St"}
	if got := DedupeKey(byMLS); got != "w100" {
		t.Fatalf("mls should win: %q", got)
	}
	byURL := models.Listing{ListingURL: "https://www.realtor.ca/A", Address: "10 Main St"}
	if got := DedupeKey(byURL); got != "https://www.realtor.ca/a" {
		t.Fatalf("url should back up mls: %q", got)
	}
	byAddress := models.Listing{Address: "10 Main St"}
	if got := DedupeKey(byAddress); got != "10 main st" {
		t.Fatalf("address should be the last resort: %q", got)
	}
}

func TestDedupeDropsKeyless(t *testing.T) {
	keyless := models.Listing{ID: "x", City: "Windsor"}
	keyed := models.Listing{Address: "10 Main St"}

	out := Dedupe([]models.Listing{keyless, keyed})
	if len(out) != 1 || out[0].Address != "10 Main St" {
		t.Fatalf("keyless listing should be dropped silently: %+v", out)
	}
}

func TestDedupeByAddressOnly(t *testing.T) {
	first := models.Listing{Address: "10 Main St", City: "Windsor"}
	second := models.Listing{Address: "10 MAIN ST", City: "Tecumseh"}

	out := Dedupe([]models.Listing{first, second})
	if len(out) != 1 {
		t.Fatalf("address collision should dedupe, got %d", len(out))
	}
	if out[0].City != "Windsor" {
		t.Fatalf("first occurrence should win, got %q", out[0].City)
	}
}
