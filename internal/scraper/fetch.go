package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// Page is one fetched response after charset normalization.
type Page struct {
	Body       string
	StatusCode int
}

// Fetcher issues outbound HTTP requests for a scrape run. All fetches within
// one run are sequential; the run inserts its own pacing delay between them.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Page, error)
}

// browserHeaders mimic a desktop browser. The court sites refuse obviously
// scripted clients.
var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3",
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
}

// HTTPFetcher fetches pages with a shared cookie jar so a solved captcha
// stays valid for the rest of the session.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with browser headers and a request
// timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New().
		SetHeaders(browserHeaders).
		SetTimeout(timeout)
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) (*Page, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: get %s", url)
	}
	body := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if isLegacyEncoded(contentType, body) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(body)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: decode windows-1251 body from %s", url)
		}
		body = decoded
	}
	return &Page{Body: string(body), StatusCode: resp.StatusCode()}, nil
}

// isLegacyEncoded reports whether a response body needs windows-1251
// decoding. Regional court sites declare the charset in the Content-Type
// header or a meta tag; binary responses (captcha images) are left alone.
func isLegacyEncoded(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "windows-1251") || strings.Contains(ct, "charset=1251") {
		return true
	}
	if !strings.Contains(ct, "text/") && !strings.Contains(ct, "html") {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), 1024)]))
	return strings.Contains(head, "charset=windows-1251")
}
