// Package dispatch runs the rate-limited send lanes. One durable queue and
// one worker pool exist per (region, category) pair; a region's provider
// quota is split between its transactional and marketing lanes. Lane state
// is runtime-only and is rebuilt from persisted per-region rate settings on
// process start.
package dispatch
