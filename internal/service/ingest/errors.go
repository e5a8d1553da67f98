package ingest

import "errors"

var (
	// ErrUnknownEventType is returned for provider event types outside the
	// canonical mapping.
	ErrUnknownEventType = errors.New("unknown provider event type")

	// ErrMessageNotFound is returned when neither the provider message id
	// nor the embedded message header resolves to a stored message.
	ErrMessageNotFound = errors.New("message not found for provider event")
)
