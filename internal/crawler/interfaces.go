package crawler

import "context"

// Fetcher performs exactly one HTTP GET attempt.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// DocumentSource returns a parsed page, or the empty sentinel when the page
// could not be fetched. It never fails.
type DocumentSource interface {
	Document(ctx context.Context, url string) *Document
}

// Geocoder resolves a free-text address into address components. A miss
// yields an empty slice, never an error.
type Geocoder interface {
	Resolve(ctx context.Context, address string) []AddressComponent
}

// Ledger records which work units have completed.
type Ledger interface {
	Contains(key string) bool
	MarkDone(key string) error
}

// PersistFunc receives the accumulated records at autosave points.
type PersistFunc func(ctx context.Context, records []BusinessRecord) error
