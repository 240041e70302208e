package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const detailPage = `<html><body>
<div id="imageListOuterCon">
	<img class="gridViewListingImage" src="https://cdn.realtor.ca/listing/26001716_1.jpg">
	<img class="gridViewListingImage" src="https://cdn.realtor.ca/listing/26001716_2.jpg">
	<img class="gridViewListingImage" src="">
</div>
<div id="propertyDescriptionCon">
	Charming two-storey brick home steps from the riverfront trail.
</div>
<div id="propertyDetailsSectionContentSubCon_SquareFootage">
	<div class="propertyDetailsSectionContentLabel">Square Footage</div>
	<div class="propertyDetailsSectionContentValue">1,888 sqft</div>
</div>
<div class="realtorCardCon" id="RealtorCard-1935675">
	<div class="realtorCardName">JANE TREMBLAY</div>
</div>
<div class="officeCardCon OfficeCard-290197">
	<div class="officeCardName">DEERBROOK REALTY INC.</div>
</div>
</body></html>`

func TestParseListingDetails(t *testing.T) {
	details, err := ParseListingDetails(strings.NewReader(detailPage))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if details.Description != "Charming two-storey brick home steps from the riverfront trail." {
		t.Fatalf("unexpected description %q", details.Description)
	}
	if details.SquareFeet == nil || *details.SquareFeet != 1888 {
		t.Fatalf("expected sqft 1888, got %v", details.SquareFeet)
	}
	if len(details.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(details.Photos))
	}
	if details.Photos[0] != "https://cdn.realtor.ca/listing/26001716_1.jpg" {
		t.Fatalf("unexpected first photo %s", details.Photos[0])
	}
	if details.AgentName != "JANE TREMBLAY" {
		t.Fatalf("unexpected agent %q", details.AgentName)
	}
	if details.Brokerage != "DEERBROOK REALTY INC." {
		t.Fatalf("unexpected brokerage %q", details.Brokerage)
	}
}

func TestParseListingDetailsSparsePage(t *testing.T) {
	details, err := ParseListingDetails(strings.NewReader(`<html><body><p>hello</p></body></html>`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if details.Description != "" || details.AgentName != "" || details.Brokerage != "" {
		t.Fatalf("expected empty fields, got %+v", details)
	}
	if details.SquareFeet != nil {
		t.Fatalf("expected nil sqft, got %v", *details.SquareFeet)
	}
	if len(details.Photos) != 0 {
		t.Fatalf("expected no photos, got %d", len(details.Photos))
	}
}

func noRedirectClient(srv *httptest.Server) *http.Client {
	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

func TestFetchDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live":
			w.Write([]byte(detailPage))
		case "/moved":
			w.Header().Set("Location", "/map?PropertySearchTypeId=300")
			w.WriteHeader(http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	worker := NewEnrichmentWorker(nil, noRedirectClient(srv))

	details, err := worker.FetchDetails(context.Background(), srv.URL+"/live")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if details.Brokerage != "DEERBROOK REALTY INC." {
		t.Fatalf("unexpected brokerage %q", details.Brokerage)
	}

	if _, err := worker.FetchDetails(context.Background(), srv.URL+"/moved"); err == nil {
		t.Fatal("expected error for redirected listing")
	}
	if _, err := worker.FetchDetails(context.Background(), srv.URL+"/gone"); err == nil {
		t.Fatal("expected error for missing listing")
	}
}
