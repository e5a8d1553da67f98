// Package sending implements the transactional send path: validate the
// sender identity against the team's verified domains, screen recipients
// against the suppression registry, persist the message, and hand it to the
// regional transactional dispatch lane.
package sending
