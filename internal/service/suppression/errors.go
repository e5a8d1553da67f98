package suppression

import "errors"

// Sentinel errors for the suppression service layer.
var (
	ErrNotFound     = errors.New("suppression not found")
	ErrInvalidEmail = errors.New("email is required")
)
