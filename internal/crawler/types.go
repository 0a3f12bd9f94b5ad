package crawler

import (
	"fmt"
	"net/http"
	"time"
)

// WorkUnit is one geographic search target (normally a county).
type WorkUnit struct {
	Query         string  `json:"query" yaml:"query"`
	LocationLabel string  `json:"location" yaml:"name"`
	StateCode     string  `json:"state" yaml:"state"`
	Latitude      float64 `json:"lat" yaml:"lat"`
	Longitude     float64 `json:"lon" yaml:"lon"`
}

// Key identifies the unit in the resume ledger ("County,ST").
func (u WorkUnit) Key() string {
	return fmt.Sprintf("%s,%s", u.LocationLabel, u.StateCode)
}

// SearchTerm is the free-text query sent to the search source.
func (u WorkUnit) SearchTerm() string {
	if u.StateCode == "" {
		return fmt.Sprintf("%s in %s", u.Query, u.LocationLabel)
	}
	return fmt.Sprintf("%s in %s, %s", u.Query, u.LocationLabel, u.StateCode)
}

// ListingRef points at one listing discovered on a results page.
type ListingRef struct {
	ID        string
	DetailURL string
}

// BusinessRecord is the structured output for one listing.
type BusinessRecord struct {
	ListingID     string  `json:"listing_id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Phone         string  `json:"phone"`
	Hours         string  `json:"hours"`
	Website       string  `json:"website"`
	Rating        float64 `json:"rating"`
	RawAddress    string  `json:"raw_address"`
	StreetAddress string  `json:"street_address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Zip           string  `json:"zip"`
	County        string  `json:"county"`
	StateCode     string  `json:"state_code"`
}

// AddressComponent mirrors one element of a geocoding response's
// address_components array. It is cached verbatim.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Type returns the primary component type, or "" when none is present.
func (c AddressComponent) Type() string {
	if len(c.Types) == 0 {
		return ""
	}
	return c.Types[0]
}

// FetchRequest describes one HTTP GET attempt.
type FetchRequest struct {
	URL     string
	Headers http.Header
	// Direct bypasses the configured proxy for this attempt.
	Direct bool
}

// FetchResponse captures the raw result of a single attempt.
type FetchResponse struct {
	URL           string
	StatusCode    int
	Headers       http.Header
	Body          []byte
	ContentLength int64
	Duration      time.Duration
	Proxied       bool
}
