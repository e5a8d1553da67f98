package sending

import "errors"

var (
	// ErrInvalidRequest is returned when a send request is structurally
	// unusable (no recipients, unparseable from address).
	ErrInvalidRequest = errors.New("invalid send request")

	// ErrDomainMismatch is returned when the from address does not belong to
	// any sending domain registered by the team.
	ErrDomainMismatch = errors.New("from address does not match a registered sending domain")

	// ErrDomainNotVerified is returned when the matched sending domain has
	// not completed provider verification.
	ErrDomainNotVerified = errors.New("sending domain is not verified")

	// ErrSuppressedRecipient is returned when a primary recipient is on the
	// team's suppression list.
	ErrSuppressedRecipient = errors.New("recipient is suppressed")

	// ErrMessageNotFound is returned when a message id does not exist for
	// the team.
	ErrMessageNotFound = errors.New("message not found")
)
