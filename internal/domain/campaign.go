package domain

import "time"

// CampaignStatus tracks a campaign's sending lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignSent      CampaignStatus = "SENT"
)

// Campaign is a marketing send to a contact book. Content is the editor's
// JSON document; HTML caches the rendered output from the last send. The
// aggregate counters are incremented as status events arrive for the
// campaign's messages.
type Campaign struct {
	ID            string         `json:"id" db:"id"`
	TeamID        int64          `json:"team_id" db:"team_id"`
	Name          string         `json:"name" db:"name"`
	From          string         `json:"from" db:"from"`
	Subject       string         `json:"subject" db:"subject"`
	ReplyTo       []string       `json:"reply_to,omitempty" db:"reply_to"`
	CC            []string       `json:"cc,omitempty" db:"cc"`
	BCC           []string       `json:"bcc,omitempty" db:"bcc"`
	Content       string         `json:"content,omitempty" db:"content"`
	HTML          string         `json:"html,omitempty" db:"html"`
	ContactBookID string         `json:"contact_book_id,omitempty" db:"contact_book_id"`
	Status        CampaignStatus `json:"status" db:"status"`
	Total         int            `json:"total" db:"total"`
	Sent          int            `json:"sent" db:"sent"`
	Delivered     int            `json:"delivered" db:"delivered"`
	Opened        int            `json:"opened" db:"opened"`
	Clicked       int            `json:"clicked" db:"clicked"`
	Bounced       int            `json:"bounced" db:"bounced"`
	HardBounced   int            `json:"hard_bounced" db:"hard_bounced"`
	Complained    int            `json:"complained" db:"complained"`
	Unsubscribed  int            `json:"unsubscribed" db:"unsubscribed"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// CounterFor maps an accepted status event to the campaign counter it
// increments. Returns "" for statuses that don't feed campaign analytics.
func CounterFor(s EmailStatus) string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusOpened:
		return "opened"
	case StatusClicked:
		return "clicked"
	case StatusBounced:
		return "bounced"
	case StatusComplained:
		return "complained"
	default:
		return ""
	}
}
