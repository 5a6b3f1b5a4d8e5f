// Package api hosts the operator HTTP surface served while a crawl runs:
//   - GET /healthz for liveness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the progress of the current run.
package api
