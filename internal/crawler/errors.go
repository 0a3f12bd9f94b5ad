package crawler

import (
	"errors"
	"fmt"
)

// Error kinds produced while crawling. None of them escape a work unit except
// through UnitError; configuration problems are reported by the config package.
var (
	// ErrNetwork marks transport failures (DNS, connect, timeout, proxy).
	ErrNetwork = errors.New("network error")
	// ErrUpstreamBlocked marks 429/503 responses and block-page bodies.
	ErrUpstreamBlocked = errors.New("upstream blocked")
	// ErrUnexpectedStatus marks any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrGeocodeMiss marks an address that could not be resolved.
	ErrGeocodeMiss = errors.New("geocode miss")
)

// UnitError reports a work unit that aborted. The unit is not marked done.
type UnitError struct {
	Unit string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s failed: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// StatusError carries the HTTP status of a rejected response.
type StatusError struct {
	Kind       error
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", e.Kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}
