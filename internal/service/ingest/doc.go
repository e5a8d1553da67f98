// Package ingest turns provider delivery notifications into canonical
// lifecycle events. It is the only writer of a message's latestStatus: every
// event is appended to the log, but the denormalized pointer only moves
// forward along the status precedence order, so out-of-order provider
// notifications cannot regress a message.
package ingest
