// Package sinks implements progress consumers: Prometheus collectors, a debug
// log stream and an in-memory usage ledger.
package sinks
