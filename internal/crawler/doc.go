// Package crawler implements the listing crawl engine: the retrying document
// source, block detection, the pagination walker, the detail worker pool and
// the orchestrator that checkpoints work units between runs.
//
// Every sleep goes through a Pauser and every page through a DocumentSource,
// so the engine runs in tests without network access or real delays.
package crawler
