package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div id="rl">
  <div jsname="jXK9ad"><a data-cid="111" href="#">Joe's Pizza</a></div>
  <div jsname="jXK9ad"><a data-cid="222" href="#">Slice House</a></div>
  <div jsname="jXK9ad"><span>sponsored, no id</span></div>
</div>
<a id="pnnext" href="/search?q=pizza&amp;start=20">Next</a>
</body></html>`

const detailPage = `<html><body>
<h2 data-attrid="title"><span>Joe's Pizza</span></h2>
<div><span class="YhemCb">Pizza restaurant in Springfield, Illinois</span></div>
<div><span class="w8qArf">Address: </span><span class="LrzXr">12 Elm St, Springfield, IL 62701</span></div>
<div><span>Phone</span><span><a href="tel:5551234567"><span>(555) 123-4567</span></a></span></div>
<table class="WgFkxc">
  <tr><td>Monday</td><td>11 AM–9 PM</td></tr>
  <tr><td>Tuesday</td><td>Closed</td></tr>
</table>
<a href="/url?q=https://joespizza.example/&amp;sa=U">Website</a>
<span class="Aq14fc">4,6</span>
</body></html>`

func TestExtractListingIDs(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, resultsPage)
	require.Equal(t, []string{"111", "222"}, ExtractListingIDs(doc, Selectors{}))
	require.Equal(t, "/search?q=pizza&start=20", ExtractNextPage(doc, Selectors{}))
}

func TestExtractListingIDsWithoutMatches(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractListingIDs(mustParse(t, "<html><body><p>nothing</p></body></html>"), Selectors{}))
	require.Empty(t, ExtractListingIDs(EmptyDocument("x"), Selectors{}))
	require.Empty(t, ExtractNextPage(EmptyDocument("x"), Selectors{}))
}

func TestExtractRecord(t *testing.T) {
	t.Parallel()

	rec := ExtractRecord(mustParse(t, detailPage), DefaultSelectors())
	assert.Equal(t, "Joe's Pizza", rec.Name)
	assert.Equal(t, "Pizza restaurant", rec.Category)
	assert.Equal(t, "12 Elm St, Springfield, IL 62701", rec.RawAddress)
	assert.Equal(t, "(555) 123-4567", rec.Phone)
	assert.Equal(t, "Monday: 11 AM-9 PM, Tuesday: Closed", rec.Hours)
	assert.Equal(t, "https://joespizza.example", rec.Website)
	assert.InDelta(t, 4.6, rec.Rating, 1e-9)
	assert.Empty(t, rec.StreetAddress)
}

func TestExtractRecordAddressFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body><div><span><b>Address</b></span><span>99 Oak Ave, Shelbyville</span></div></body></html>`
	rec := ExtractRecord(mustParse(t, page), Selectors{})
	require.Equal(t, "99 Oak Ave, Shelbyville", rec.RawAddress)
	require.Empty(t, rec.Name)
}

func TestExtractRecordMissingFieldsStayEmpty(t *testing.T) {
	t.Parallel()

	rec := ExtractRecord(mustParse(t, "<html><body><p>blank</p></body></html>"), Selectors{})
	require.Equal(t, BusinessRecord{}, rec)
	require.Equal(t, BusinessRecord{}, ExtractRecord(EmptyDocument("x"), Selectors{}))
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"4.5":  4.5,
		"3,9":  3.9,
		" 5 ":  5,
		"7.2":  5,
		"-1":   0,
		"":     0,
		"n/a":  0,
		"NaN":  0,
		"0.0":  0,
		"4.25": 4.25,
	}
	for raw, want := range cases {
		assert.InDelta(t, want, parseRating(raw), 1e-9, "rating %q", raw)
	}
}

func TestApplyAddress(t *testing.T) {
	t.Parallel()

	rec := BusinessRecord{RawAddress: "12 Elm St"}
	ApplyAddress(&rec, []AddressComponent{
		{LongName: "12", Types: []string{"street_number"}},
		{LongName: "Elm St", Types: []string{"route"}},
		{LongName: "Springfield", Types: []string{"locality", "political"}},
		{LongName: "Illinois", ShortName: "IL", Types: []string{"administrative_area_level_1", "political"}},
		{LongName: "62701", Types: []string{"postal_code"}},
		{LongName: "Sangamon County", Types: []string{"administrative_area_level_2", "political"}},
		{LongName: "ignored", Types: nil},
	})
	require.Equal(t, "12 Elm St", rec.StreetAddress)
	require.Equal(t, "Springfield", rec.City)
	require.Equal(t, "Illinois", rec.State)
	require.Equal(t, "62701", rec.Zip)
	require.Empty(t, rec.County, "county comes from the work unit, not the geocoder")
}

func TestApplyAddressEmptyResult(t *testing.T) {
	t.Parallel()

	rec := BusinessRecord{RawAddress: "somewhere"}
	ApplyAddress(&rec, nil)
	require.Empty(t, rec.StreetAddress)
	require.Empty(t, rec.City)

	ApplyAddress(&rec, []AddressComponent{{LongName: "Elm St", Types: []string{"route"}}})
	require.Equal(t, "Elm St", rec.StreetAddress)
}
