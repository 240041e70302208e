// Package httputil builds the HTTP clients shared across the pipeline.
// Target sites get an HTTP/1.1 client that never follows redirects; hosted
// APIs get a plain direct client.
package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

type Clients struct {
	Scraping *http.Client // target sites
	API      *http.Client // Apify, stat feeds, media CDNs
}

// NewClients wires the shared clients. proxyURL may be empty, in which case
// the scraping client goes direct. The scraping client surfaces redirects
// instead of following them, so a redirect off a listing page can be read as
// a delist signal.
func NewClients(proxyURL string) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}

// BrowserHeaders stamps the request with the headers realtor.ca expects from
// a real browser. A naked Go user agent gets the Incapsula wall.
func BrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-CA,en;q=0.9")
	req.Header.Set("Referer", "https://www.realtor.ca/")
}
