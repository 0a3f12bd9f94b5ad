// Package cmd defines the listingcrawler CLI.
//
// Architecture overview:
//   - Work units: a YAML file names the query, the state and the counties to
//     search, each with a centroid. One county is one unit of work and one line
//     in the checkpoint ledger once it completes.
//   - Fetch pipeline: every page goes through the Colly fetcher (optionally
//     behind a rotating proxy) wrapped by the retrier, which rotates user
//     agents, backs off exponentially with jitter and hands back an empty
//     document when a page cannot be fetched.
//   - Crawl engine: the walker pages through results for a unit, deduplicating
//     listing ids, and feeds new listings to a bounded pool of detail workers.
//     Workers extract fields and enrich addresses through a cached,
//     rate-limited geocoder shared by every worker.
//   - Persistence: after every N completed units the orchestrator saves all
//     records to output/<name> - <ST>.json and, when a DSN is configured,
//     upserts them into Postgres.
//   - Observability: zap logs carry unit keys and listing ids; usage events
//     (requests, proxied bytes, geocode calls) are batched to Prometheus and a
//     usage ledger, exposed on metrics.addr together with /v1/status.
//
// Quick checklist:
//   - Configure LISTINGS_GEOCODE_API_KEY, and LISTINGS_PROXY_ENABLED with
//     LISTINGS_PROXY_USER and LISTINGS_PROXY_PASS when crawling through the proxy.
//   - Run: listingcrawler crawl --units illinois.yaml --query "vegan restaurants".
//   - Interrupt with Ctrl-C at any time; rerunning the same command resumes
//     after the last completed county.
package cmd
