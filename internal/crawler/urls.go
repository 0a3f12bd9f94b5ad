package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the search source origin.
const DefaultBaseURL = "https://www.google.com"

const (
	defaultSearchRadius = 2415
	searchVED           = "2ahUKEwiN1fyRwNbnAhUHVBUIHdOxBdIQjGp6BAgLEFk"
)

// detailPathTemplate is the async knowledge-panel endpoint; %s slots are the
// escaped search term and the listing id.
const detailPathTemplate = "/async/lcl_akp?ei=N5dMXuOUC82ckgXKz634Ag" +
	"&tbs=lrf:!1m4!1u3!2m2!3m1!1e1!1m4!1u2!2m2!2m1!1e1!1m4!1u16!2m2!16m1!1e1!1m4!1u16!2m2!16m1!1e2" +
	"!2m1!1e2!2m1!1e16!2m1!1e3!3sIAE,lf:1,lf_ui:9" +
	"&yv=3&lqi=Chd2ZWdhbiByZXN0YXVyYW50IHN5ZG5leUjDmMXr9pWAgAhaNQoQdmVnYW4gcmVzdGF1cmFudBAAEAEYABgBGAIiF3ZlZ2FuIHJlc3RhdXJhbnQgc3lkbmV5" +
	"&phdesc=Z0sOfSPV1mY&vet=10ahUKEwijjPfywtznAhVNjqQKHcpnCy8Q8UEI7AI..i&lei=N5dMXuOUC82ckgXKz634Ag" +
	"&tbm=lcl&q=%s&async=ludocids:%s,f:rlni,lqe:false,_id:akp_tsuid14,_pms:s,_fmt:pc"

// URLBuilder renders search, detail and pagination URLs against one origin.
type URLBuilder struct {
	BaseURL string
	Radius  int
}

func (b URLBuilder) base() string {
	if b.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(b.BaseURL, "/")
}

// Search builds the first results page URL for a unit, biased to its
// coordinates.
func (b URLBuilder) Search(unit WorkUnit) string {
	radius := b.Radius
	if radius <= 0 {
		radius = defaultSearchRadius
	}
	return fmt.Sprintf("%s/search?q=%s&npsic=0&rflfq=1&rlha=0&rllag=%s,%s,%d&tbm=lcl&ved=%s",
		b.base(),
		url.QueryEscape(unit.SearchTerm()),
		formatCoord(unit.Latitude),
		formatCoord(unit.Longitude),
		radius,
		searchVED,
	)
}

// Detail builds the detail page URL for one listing.
func (b URLBuilder) Detail(searchTerm, listingID string) string {
	return b.base() + fmt.Sprintf(detailPathTemplate, url.QueryEscape(searchTerm), listingID)
}

// Next resolves a next-page href. Relative paths are joined to the origin.
func (b URLBuilder) Next(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return b.base() + href
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%g", v)
}
