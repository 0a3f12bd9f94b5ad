// Package progress carries crawl usage accounting: the Event type, a
// non-blocking Hub that batches events off the hot path, and the Sink
// interface implemented by the Prometheus, log and usage-ledger consumers.
// Proxy bandwidth and geocoding quota are tracked from these events.
package progress
