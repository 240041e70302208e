package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name string
		html string
		want *float64
	}{
		{"json-ld", `<script type="application/ld+json">{"@type":"Offer","price": "564900.00"}</script>`, floatPtr(564900)},
		{"js variable", `<script>var listing = { price: '450000' };</script>`, floatPtr(450000)},
		{"data attribute", `<span data-value-cad="$564,900 ">$564,900</span>`, floatPtr(564900)},
		{"json-ld wins", `<b data-value-cad="$1">x</b>"price" : "725000"`, floatPtr(725000)},
		{"no price", `<html><body>nothing here</body></html>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPrice(tt.html)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("extractPrice() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Fatalf("extractPrice() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestIsDelistRedirect(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"/map", true},
		{"https://www.realtor.ca/search?city=Windsor", true},
		{"https://www.realtor.ca/NotFound", true},
		{"/mappage?PropertySearchTypeId=300", true},
		{"https://www.realtor.ca/real-estate/29279012/939-chateau-windsor", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isDelistRedirect(tt.location); got != tt.want {
			t.Errorf("isDelistRedirect(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}

func TestIsDelistedPage(t *testing.T) {
	if !isDelistedPage(`<p>This listing is no longer available.</p>`) {
		t.Error("expected removal notice to read as delisted")
	}
	if isDelistedPage(detailPage) {
		t.Error("expected a normal detail page to read as live")
	}
}

func TestCheck(t *testing.T) {
	pricePage := `<script type="application/ld+json">{"price": "589000.00"}</script>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			http.NotFound(w, r)
		case "/moved":
			w.Header().Set("Location", "/map?PropertySearchTypeId=300")
			w.WriteHeader(http.StatusFound)
		case "/no-head":
			// HEAD rejected, GET serves a priced page.
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Write([]byte(pricePage))
		case "/pulled":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Write([]byte(`<p>This listing is no longer available.</p>`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	worker := NewHealthcheckWorker(nil, noRedirectClient(srv))
	ctx := context.Background()

	result := worker.Check(ctx, srv.URL+"/live")
	if result.Err != nil || !result.IsLive {
		t.Fatalf("expected live, got %+v", result)
	}
	if result.CurrentPrice != nil {
		t.Fatal("HEAD check should not carry a price")
	}

	result = worker.Check(ctx, srv.URL+"/gone")
	if result.Err != nil || result.IsLive {
		t.Fatalf("expected delisted on 404, got %+v", result)
	}

	result = worker.Check(ctx, srv.URL+"/moved")
	if result.Err != nil || result.IsLive {
		t.Fatalf("expected delisted on search redirect, got %+v", result)
	}
	if result.StatusCode != http.StatusFound {
		t.Fatalf("expected status 302, got %d", result.StatusCode)
	}

	result = worker.Check(ctx, srv.URL+"/no-head")
	if result.Err != nil || !result.IsLive {
		t.Fatalf("expected live via GET fallback, got %+v", result)
	}
	if result.CurrentPrice == nil || *result.CurrentPrice != 589000 {
		t.Fatalf("expected price 589000 from GET fallback, got %v", result.CurrentPrice)
	}

	result = worker.Check(ctx, srv.URL+"/pulled")
	if result.Err != nil || result.IsLive {
		t.Fatalf("expected removal notice to delist, got %+v", result)
	}
}
