package domain

import "time"

// Webhook is a team-configured subscriber endpoint for status events.
// Read-mostly; lookups are cached. Secret signs outbound payloads.
type Webhook struct {
	ID        string        `json:"id" db:"id"`
	TeamID    int64         `json:"team_id" db:"team_id"`
	URL       string        `json:"url" db:"url"`
	Secret    string        `json:"-" db:"secret"`
	Events    []EmailStatus `json:"events" db:"events"`
	DomainID  *int64        `json:"domain_id,omitempty" db:"domain_id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Matches reports whether the webhook subscribes to the given event for a
// message owned by domainID. A nil domain scope matches every domain.
func (w *Webhook) Matches(event EmailStatus, domainID int64) bool {
	if w.DomainID != nil && *w.DomainID != domainID {
		return false
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}
