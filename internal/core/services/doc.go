// Package services implements the driving port interfaces.
// Services hold the crawl, ingest, retrieval and answering logic and
// orchestrate calls to driven ports (adapters).
package services
