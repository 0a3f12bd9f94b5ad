package crawler

// Selectors locates listing and detail fields in fetched pages. Every field
// can be overridden under crawl.selectors; empty fields keep their default.
type Selectors struct {
	// Results page.
	Listing       string `mapstructure:"listing"`
	ListingIDAttr string `mapstructure:"listing_id_attr"`
	NextPageXPath string `mapstructure:"next_page_xpath"`

	// Detail page.
	Name            string `mapstructure:"name"`
	Address         string `mapstructure:"address"`
	AddressXPath    string `mapstructure:"address_xpath"`
	Phone           string `mapstructure:"phone"`
	HoursRows       string `mapstructure:"hours_rows"`
	Website         string `mapstructure:"website"`
	Rating          string `mapstructure:"rating"`
	CategoryXPath   string `mapstructure:"category_xpath"`
	CategorySplitOn string `mapstructure:"category_split_on"`
}

// DefaultSelectors matches the local-results markup currently served.
func DefaultSelectors() Selectors {
	return Selectors{
		Listing:         `div div[jsname="jXK9ad"]`,
		ListingIDAttr:   "data-cid",
		NextPageXPath:   `//a[contains(@id,'pnnext')]/@href`,
		Name:            `h2[data-attrid="title"] span`,
		Address:         `.w8qArf:contains(Address) + .LrzXr`,
		AddressXPath:    `//span[contains(*, 'Address')]/following::span[1]/text()`,
		Phone:           `span:contains("Phone") + span a span`,
		HoursRows:       `table.WgFkxc tr`,
		Website:         `a:contains("Website")`,
		Rating:          `.Aq14fc`,
		CategoryXPath:   `//span[contains(@class,'YhemCb')]//text()`,
		CategorySplitOn: " in ",
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&s.Listing, d.Listing)
	fill(&s.ListingIDAttr, d.ListingIDAttr)
	fill(&s.NextPageXPath, d.NextPageXPath)
	fill(&s.Name, d.Name)
	fill(&s.Address, d.Address)
	fill(&s.AddressXPath, d.AddressXPath)
	fill(&s.Phone, d.Phone)
	fill(&s.HoursRows, d.HoursRows)
	fill(&s.Website, d.Website)
	fill(&s.Rating, d.Rating)
	fill(&s.CategoryXPath, d.CategoryXPath)
	fill(&s.CategorySplitOn, d.CategorySplitOn)
	return s
}
