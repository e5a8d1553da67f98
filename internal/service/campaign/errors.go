package campaign

import "errors"

var (
	// ErrCampaignNotFound is returned when a campaign id does not exist for
	// the team.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignNoContent is returned when a campaign has no content
	// document to render.
	ErrCampaignNoContent = errors.New("campaign has no content")

	// ErrCampaignNoList is returned when a campaign has no contact book to
	// fan out to.
	ErrCampaignNoList = errors.New("campaign has no contact book")

	// ErrDomainMismatch is returned when the campaign's from address does
	// not belong to any of the team's sending domains.
	ErrDomainMismatch = errors.New("from address does not match a registered sending domain")

	// ErrDomainNotVerified is returned when the matched sending domain has
	// not completed provider verification.
	ErrDomainNotVerified = errors.New("sending domain is not verified")

	// ErrSendInProgress is returned when another process is already fanning
	// the campaign out.
	ErrSendInProgress = errors.New("campaign send already in progress")

	// ErrContactNotFound is returned by the unsubscribe flow when the token
	// names an unknown contact.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvalidUnsubscribeSignature is returned when an unsubscribe link's
	// signature does not match its id.
	ErrInvalidUnsubscribeSignature = errors.New("invalid unsubscribe signature")
)
