// Package webhook manages team webhook endpoints and fans accepted status
// events out to them. Subscription lookups are cached; deliveries are
// best-effort fire-and-forget so a slow subscriber can never stall status
// ingestion.
package webhook
