package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shippingcomps/backend/pkg/logger"
)

const structuredExtractTimeout = 25 * time.Second

// extractionPrompt is the natural-language instruction sent with the schema
const extractionPrompt = `Extract the business details, shipping incentives
(including any free shipping threshold as a dollar amount), return policy,
customer service options, delivery timeframes and current promotions from
this e-commerce website.`

// extractionSchema describes the JSON shape the scraping API should return
var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"business_details":    map[string]any{"type": "string"},
		"shipping_incentives": map[string]any{"type": "string"},
		"has_free_shipping":   map[string]any{"type": "boolean"},
		"delivery_timeframe":  map[string]any{"type": "string"},
		"return_policy":       map[string]any{"type": "string"},
		"customer_service":    map[string]any{"type": "string"},
		"promotions":          map[string]any{"type": "string"},
	},
}

// FirecrawlClient calls a managed scrape/extract API that returns structured
// JSON for a target URL.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewFirecrawlClient constructs a structured extraction client
func NewFirecrawlClient(apiKey, baseURL string, log logger.Logger) *FirecrawlClient {
	if log == nil {
		log = logger.Default()
	}
	return &FirecrawlClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: structuredExtractTimeout},
		logger:  log,
	}
}

type extractRequest struct {
	URLs   []string       `json:"urls"`
	Prompt string         `json:"prompt"`
	Schema map[string]any `json:"schema"`
}

type extractResponse struct {
	Success bool            `json:"success"`
	Data    *StructuredData `json:"data"`
	Error   string          `json:"error"`
}

// Fetch submits the URL with the extraction schema and prompt. A response
// with success=false degrades to an empty structured result instead of an
// error, so downstream stages can still emit a null shipping profile.
// Transport-level failures return ErrAcquisition.
func (c *FirecrawlClient) Fetch(ctx context.Context, url string) (*Content, error) {
	url = NormalizeURL(url)

	payload, err := json.Marshal(extractRequest{
		URLs:   []string{url},
		Prompt: extractionPrompt,
		Schema: extractionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrAcquisition, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAcquisition, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: extract API returned %d", ErrAcquisition, resp.StatusCode)
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrAcquisition, err)
	}

	if !out.Success || out.Data == nil {
		c.logger.Warn("structured extraction unsuccessful", "url", url, "api_error", out.Error)
		return &Content{Structured: &StructuredData{}}, nil
	}

	return &Content{
		Text:       renderStructured(out.Data),
		Structured: out.Data,
	}, nil
}

// renderStructured flattens structured fields into profile-feeding text
func renderStructured(d *StructuredData) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	write("Business", d.BusinessDetails)
	write("Shipping", d.ShippingIncentives)
	write("Delivery", d.DeliveryTimeframe)
	write("Returns", d.ReturnPolicy)
	write("Customer service", d.CustomerService)
	write("Promotions", d.Promotions)
	return strings.TrimSpace(b.String())
}
