// Package api hosts the HTTP surface that runs alongside a crawl. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for orchestrator progress and usage totals.
//   - GET /v1/usage for proxy traffic and geocode call counts alone.
package api
