package domain

import "time"

// DomainStatus mirrors the provider's identity verification state.
type DomainStatus string

const (
	DomainNotStarted       DomainStatus = "NOT_STARTED"
	DomainPending          DomainStatus = "PENDING"
	DomainSuccess          DomainStatus = "SUCCESS"
	DomainFailed           DomainStatus = "FAILED"
	DomainTemporaryFailure DomainStatus = "TEMPORARY_FAILURE"
)

// SendingDomain is a verified sending identity. Its lifecycle (DNS records,
// provider verification) is owned by an external collaborator; dispatch only
// reads region, status and the tracking flags.
type SendingDomain struct {
	ID            int64        `json:"id" db:"id"`
	TeamID        int64        `json:"team_id" db:"team_id"`
	Name          string       `json:"name" db:"name"`
	Region        string       `json:"region" db:"region"`
	Status        DomainStatus `json:"status" db:"status"`
	ClickTracking bool         `json:"click_tracking" db:"click_tracking"`
	OpenTracking  bool         `json:"open_tracking" db:"open_tracking"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Verified reports whether the domain may be used for sending.
func (d *SendingDomain) Verified() bool {
	return d.Status == DomainSuccess
}

// SendRateSetting is the persisted per-region provider quota configuration.
// Dispatch lanes are runtime-only and are rebuilt from these rows on boot.
type SendRateSetting struct {
	Region            string `json:"region" db:"region"`
	RateLimit         int    `json:"rate_limit" db:"rate_limit"`
	TransactionalPct  int    `json:"transactional_pct" db:"transactional_pct"`
}
