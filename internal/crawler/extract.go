package crawler

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var websiteRedirect = regexp.MustCompile(`q=(.*)/`)

// ExtractListingIDs returns the listing IDs found on a results page in
// document order. Entries without an ID are skipped.
func ExtractListingIDs(doc *Document, sel Selectors) []string {
	sel = sel.WithDefaults()
	var ids []string
	attr := sel.ListingIDAttr
	doc.Find(sel.Listing).Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Find("a[" + attr + "]").First().Attr(attr)
		if !ok {
			return
		}
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

// ExtractNextPage returns the raw next-page href, or "" on the last page.
func ExtractNextPage(doc *Document, sel Selectors) string {
	sel = sel.WithDefaults()
	return doc.XPathFirst(sel.NextPageXPath)
}

// ExtractRecord pulls every detail field it can find. Missing fields are left
// empty and the rating defaults to 0; it never fails.
func ExtractRecord(doc *Document, sel Selectors) BusinessRecord {
	sel = sel.WithDefaults()
	rec := BusinessRecord{
		Name:     firstText(doc, sel.Name),
		Phone:    firstText(doc, sel.Phone),
		Hours:    extractHours(doc, sel.HoursRows),
		Website:  extractWebsite(doc, sel.Website),
		Rating:   parseRating(firstText(doc, sel.Rating)),
		Category: extractCategory(doc, sel.CategoryXPath, sel.CategorySplitOn),
	}
	rec.RawAddress = firstText(doc, sel.Address)
	if rec.RawAddress == "" {
		rec.RawAddress = doc.XPathFirst(sel.AddressXPath)
	}
	return rec
}

func firstText(doc *Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func extractHours(doc *Document, rowSelector string) string {
	var rows []string
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		day := strings.TrimSpace(cells.Eq(0).Text())
		if day == "" {
			return
		}
		hours := strings.TrimSpace(cells.Eq(1).Text())
		hours = strings.ReplaceAll(hours, "–", "-")
		rows = append(rows, day+": "+hours)
	})
	return strings.Join(rows, ", ")
}

func extractWebsite(doc *Document, selector string) string {
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	if m := websiteRedirect.FindStringSubmatch(href); len(m) == 2 && m[1] != "" {
		return m[1]
	}
	return strings.TrimSpace(href)
}

func extractCategory(doc *Document, xpath, splitOn string) string {
	joined := strings.Join(doc.XPath(xpath), " ")
	if joined == "" {
		return ""
	}
	if splitOn != "" {
		joined, _, _ = strings.Cut(joined, splitOn)
	}
	return strings.TrimSpace(joined)
}

// parseRating converts a displayed rating into [0, 5]. Unparseable text is 0.
func parseRating(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return math.Min(5, math.Max(0, v))
}

// ApplyAddress fills the structured address fields from one geocode result.
// Fields whose component is absent stay empty.
func ApplyAddress(rec *BusinessRecord, comps []AddressComponent) {
	var number, route string
	for _, c := range comps {
		switch c.Type() {
		case "street_number":
			number = c.LongName
		case "route":
			route = c.LongName
		case "locality":
			rec.City = c.LongName
		case "administrative_area_level_1":
			rec.State = c.LongName
		case "postal_code":
			rec.Zip = c.LongName
		}
	}
	rec.StreetAddress = strings.TrimSpace(number + " " + route)
}
