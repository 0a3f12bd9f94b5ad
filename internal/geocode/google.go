package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

// DefaultEndpoint is the Google Geocoding JSON API.
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	AddressComponents []crawler.AddressComponent `json:"address_components"`
	FormattedAddress  string                     `json:"formatted_address"`
}

// GoogleClient performs single geocoding requests. Retries, pacing and
// caching are the Resolver's job.
type GoogleClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// Option configures the GoogleClient.
type Option func(*GoogleClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GoogleClient) {
		c.httpClient = hc
	}
}

// WithEndpoint overrides the API URL.
func WithEndpoint(endpoint string) Option {
	return func(c *GoogleClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// NewGoogleClient creates a client authenticated with apiKey.
func NewGoogleClient(apiKey string, opts ...Option) *GoogleClient {
	c := &GoogleClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   DefaultEndpoint,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup geocodes address and returns the first result's components. A
// ZERO_RESULTS answer is a successful empty lookup; every other non-OK status
// is an error.
func (c *GoogleClient) Lookup(ctx context.Context, address string) ([]crawler.AddressComponent, error) {
	if c.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
		if len(googleResp.Results) == 0 {
			return []crawler.AddressComponent{}, nil
		}
		comps := googleResp.Results[0].AddressComponents
		if comps == nil {
			comps = []crawler.AddressComponent{}
		}
		return comps, nil
	case "ZERO_RESULTS":
		return []crawler.AddressComponent{}, nil
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", googleResp.Status, googleResp.ErrorMessage)
	}
}
