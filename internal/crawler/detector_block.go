package crawler

import (
	"bytes"
	"net/http"
	"strings"
)

const defaultBlockWindow = 600

// DefaultBlockSignatures are the phrases that identify a soft-block page.
var DefaultBlockSignatures = []string{"unusual traffic", "sorry"}

// BlockDetector classifies responses as usable, blocked or unexpected.
type BlockDetector struct {
	window     int
	signatures [][]byte
}

// NewBlockDetector inspects the first window bytes of a body for any of the
// given signatures, case-insensitively. Zero values select the defaults.
func NewBlockDetector(window int, signatures []string) *BlockDetector {
	if window <= 0 {
		window = defaultBlockWindow
	}
	if len(signatures) == 0 {
		signatures = DefaultBlockSignatures
	}
	lower := make([][]byte, 0, len(signatures))
	for _, sig := range signatures {
		sig = strings.TrimSpace(sig)
		if sig == "" {
			continue
		}
		lower = append(lower, bytes.ToLower([]byte(sig)))
	}
	return &BlockDetector{window: window, signatures: lower}
}

// Classify returns nil for a usable 200 response, an error wrapping
// ErrUpstreamBlocked for throttling or block pages, and ErrUnexpectedStatus
// for every other status.
func (d *BlockDetector) Classify(resp FetchResponse) error {
	switch resp.StatusCode {
	case http.StatusOK:
		if d.looksBlocked(resp.Body) {
			return &StatusError{Kind: ErrUpstreamBlocked, StatusCode: resp.StatusCode}
		}
		return nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &StatusError{Kind: ErrUpstreamBlocked, StatusCode: resp.StatusCode}
	default:
		return &StatusError{Kind: ErrUnexpectedStatus, StatusCode: resp.StatusCode}
	}
}

func (d *BlockDetector) looksBlocked(body []byte) bool {
	if len(body) == 0 || len(d.signatures) == 0 {
		return false
	}
	head := body
	if len(head) > d.window {
		head = head[:d.window]
	}
	head = bytes.ToLower(head)
	for _, sig := range d.signatures {
		if bytes.Contains(head, sig) {
			return true
		}
	}
	return false
}
