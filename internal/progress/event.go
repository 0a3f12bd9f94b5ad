// Package progress defines the usage events emitted while crawling.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageUnitStart   Stage = "UNIT_START"
	StageUnitDone    Stage = "UNIT_DONE"
	StageUnitError   Stage = "UNIT_ERROR"
	StageFetchDone   Stage = "FETCH_DONE"
	StageGeocodeCall Stage = "GEOCODE_CALL"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single unit of crawl usage.
type Event struct {
	// RunID identifies one crawl invocation using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Unit is the work unit key ("County,ST") the event belongs to.
	Unit string
	// URL is the optional page URL; it must not contain credentials.
	URL string
	// Bytes is the response size for fetches. Proxy traffic is billed on it.
	Bytes int64
	// Proxied is true when the fetch went through the paid proxy.
	Proxied bool
	// Records counts business records produced (unit completions).
	Records int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures latency for fetches and unit completions.
	Dur time.Duration
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageGeocodeCall:
	case StageUnitStart, StageUnitDone, StageUnitError:
		if e.Unit == "" {
			return fmt.Errorf("%s requires unit", e.Stage)
		}
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Bytes < 0 {
		return errors.New("bytes must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// NewRunID returns a fresh random run identifier.
func NewRunID() [16]byte {
	return UUIDToBytes(uuid.New())
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
