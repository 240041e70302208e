package normalize

import (
	"reflect"
	"testing"

	"we_listings/models"
)

func TestCollectImagesKeepsFirstSeenOrder(t *testing.T) {
	raw := models.RawRecord{
		"images": []interface{}{
			"/photo1.jpg",
			"https://cdn.realtor.ca/photo2.jpg",
			"/photo1.jpg",
		},
		"photos": []interface{}{
			"https://www.realtor.ca/photo1.jpg",
			"photo3.jpg",
		},
	}
	want := []string{
		"https://www.realtor.ca/photo1.jpg",
		"https://cdn.realtor.ca/photo2.jpg",
		"https://www.realtor.ca/photo3.jpg",
	}
	if got := collectImages(raw); !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong images: %v", got)
	}
}

func TestCollectImagesAcceptsScalarAndMapCandidates(t *testing.T) {
	raw := models.RawRecord{
		"property": map[string]interface{}{
			"photo": map[string]interface{}{
				"url": "/single.jpg",
			},
		},
		"media": map[string]interface{}{
			"b": "/second.jpg",
			"a": "/first.jpg",
		},
	}
	want := []string{
		"https://www.realtor.ca/first.jpg",
		"https://www.realtor.ca/second.jpg",
		"https://www.realtor.ca/single.jpg",
	}
	if got := collectImages(raw); !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong images: %v", got)
	}
}

func TestCollectAgentsDedupesOnIdentity(t *testing.T) {
	raw := models.RawRecord{
		"agents": []interface{}{
			map[string]interface{}{"name": "Jane Doe", "phone": "519-555-0117", "office": "Royal Oak Realty"},
			map[string]interface{}{"fullName": "JANE DOE", "telephone": "519-555-0117", "officeName": "ROYAL OAK REALTY"},
			map[string]interface{}{"name": "John Roe", "email": "john@roe.ca"},
			map[string]interface{}{"title": "Broker of Record"},
		},
	}
	agents := collectAgents(raw)
	if len(agents) != 2 {
		t.Fatalf("expected two unique agents, got %d: %+v", len(agents), agents)
	}
	if agents[0].Name != "Jane Doe" || agents[0].Brokerage != "Royal Oak Realty" {
		t.Fatalf("first-seen entry should win: %+v", agents[0])
	}
	if agents[1].Name != "John Roe" || agents[1].Email != "john@roe.ca" {
		t.Fatalf("wrong second agent: %+v", agents[1])
	}
}

func TestCollectAgentsSingleEntryAndFallback(t *testing.T) {
	raw := models.RawRecord{
		"agent": map[string]interface{}{"contactName": "Amy Chen", "contactPhone": "519-555-0199"},
	}
	agents := collectAgents(raw)
	if len(agents) != 1 || agents[0].Name != "Amy Chen" || agents[0].Phone != "519-555-0199" {
		t.Fatalf("single map collection should normalize: %+v", agents)
	}

	fallback := collectAgents(models.RawRecord{"officeName": "Lakeshore Homes Inc."})
	if len(fallback) != 1 || fallback[0].Brokerage != "Lakeshore Homes Inc." || fallback[0].Name != "" {
		t.Fatalf("brokerage-only fallback missing: %+v", fallback)
	}

	if got := collectAgents(models.RawRecord{}); len(got) != 0 {
		t.Fatalf("no agent data should give an empty slice, got %+v", got)
	}
}

func TestCollectCoordinatesBothOrNil(t *testing.T) {
	got := collectCoordinates(models.RawRecord{
		"geo": map[string]interface{}{"lat": 42.3, "lon": -83.0},
	})
	if got == nil || got.Lat != 42.3 || got.Lng != -83.0 {
		t.Fatalf("lon spelling should resolve: %+v", got)
	}

	if got := collectCoordinates(models.RawRecord{
		"coordinates": map[string]interface{}{"lat": 42.3},
	}); got != nil {
		t.Fatalf("latitude alone should stay nil, got %+v", got)
	}

	if got := collectCoordinates(models.RawRecord{
		"location": map[string]interface{}{"latitude": "42.31", "longitude": "-83.03"},
	}); got == nil || got.Lat != 42.31 || got.Lng != -83.03 {
		t.Fatalf("string coordinates should parse: %+v", got)
	}
}
