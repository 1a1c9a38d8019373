package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrAcquisition is returned when content for a site cannot be fetched.
	// Acquisition failures are non-fatal for competitor nodes; only the
	// primary site treats them as hard errors.
	ErrAcquisition = errors.New("content acquisition failed")
)

const (
	rawFetchTimeout = 10 * time.Second
	// contentBudget bounds the extracted text size
	contentBudget = 15000
	browserUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Content is the unified acquisition result that feeds business profiling.
// Raw fetches populate Text; structured extraction populates Structured and
// a Text rendering of it.
type Content struct {
	Text       string
	Structured *StructuredData
}

// Empty reports whether acquisition produced no usable content
func (c *Content) Empty() bool {
	if c == nil {
		return true
	}
	if strings.TrimSpace(c.Text) != "" {
		return false
	}
	return c.Structured == nil || c.Structured.Empty()
}

// StructuredData mirrors the extraction schema sent to the scraping API
type StructuredData struct {
	BusinessDetails    string `json:"business_details"`
	ShippingIncentives string `json:"shipping_incentives"`
	HasFreeShipping    *bool  `json:"has_free_shipping"`
	DeliveryTimeframe  string `json:"delivery_timeframe"`
	ReturnPolicy       string `json:"return_policy"`
	CustomerService    string `json:"customer_service"`
	Promotions         string `json:"promotions"`
}

// Empty reports whether the extraction returned no fields
func (d *StructuredData) Empty() bool {
	if d == nil {
		return true
	}
	return d.BusinessDetails == "" && d.ShippingIncentives == "" &&
		d.HasFreeShipping == nil && d.DeliveryTimeframe == "" &&
		d.ReturnPolicy == "" && d.CustomerService == "" && d.Promotions == ""
}

// Fetcher acquires best-effort content describing a business website
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Content, error)
}

// NormalizeURL prefixes https:// when no scheme is present
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// RawFetcher fetches a page directly and strips it down to readable text
type RawFetcher struct {
	client *http.Client
}

// NewRawFetcher constructs a raw fetcher with a shared HTTP client
func NewRawFetcher() *RawFetcher {
	return &RawFetcher{
		client: &http.Client{Timeout: rawFetchTimeout},
	}
}

var (
	reScript  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav     = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader  = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter  = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTag     = regexp.MustCompile(`<[^>]+>`)
	reSpace   = regexp.MustCompile(`\s+`)
)

// Fetch issues a GET with a browser user-agent and returns stripped page text.
// Non-2xx responses and timeouts fail with ErrAcquisition and no partial
// content.
func (f *RawFetcher) Fetch(ctx context.Context, url string) (*Content, error) {
	url = NormalizeURL(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrAcquisition, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAcquisition, err)
	}

	return &Content{Text: StripHTML(string(body))}, nil
}

// StripHTML removes script/style/nav/header/footer markup, drops remaining
// tags, collapses whitespace and truncates to the content budget.
func StripHTML(html string) string {
	text := reScript.ReplaceAllString(html, " ")
	text = reStyle.ReplaceAllString(text, " ")
	text = reNav.ReplaceAllString(text, " ")
	text = reHeader.ReplaceAllString(text, " ")
	text = reFooter.ReplaceAllString(text, " ")
	text = reComment.ReplaceAllString(text, " ")
	text = reTag.ReplaceAllString(text, " ")
	text = reSpace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) > contentBudget {
		text = text[:contentBudget]
	}
	return text
}
