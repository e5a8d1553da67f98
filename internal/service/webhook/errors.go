package webhook

import "errors"

var (
	// ErrNotFound is returned when a webhook id does not exist for the team.
	ErrNotFound = errors.New("webhook not found")

	// ErrInvalidURL is returned when a webhook endpoint is not an absolute
	// http(s) URL.
	ErrInvalidURL = errors.New("webhook URL must be absolute http or https")

	// ErrNoEvents is returned when a webhook subscribes to nothing.
	ErrNoEvents = errors.New("webhook must subscribe to at least one event")
)
