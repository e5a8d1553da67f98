package domain

import "time"

// EmailStatus is the canonical, provider-agnostic delivery-lifecycle value
// used throughout ingestion and reporting.
type EmailStatus string

const (
	StatusScheduled        EmailStatus = "SCHEDULED"
	StatusQueued           EmailStatus = "QUEUED"
	StatusSent             EmailStatus = "SENT"
	StatusDeliveryDelayed  EmailStatus = "DELIVERY_DELAYED"
	StatusBounced          EmailStatus = "BOUNCED"
	StatusRejected         EmailStatus = "REJECTED"
	StatusRenderingFailure EmailStatus = "RENDERING_FAILURE"
	StatusDelivered        EmailStatus = "DELIVERED"
	StatusOpened           EmailStatus = "OPENED"
	StatusClicked          EmailStatus = "CLICKED"
	StatusComplained       EmailStatus = "COMPLAINED"
	StatusFailed           EmailStatus = "FAILED"
	StatusCancelled        EmailStatus = "CANCELLED"
	StatusSuppressed       EmailStatus = "SUPPRESSED"
)

// statusRank is the precedence table for latestStatus updates. A status event
// only advances a message's latestStatus when its rank is strictly greater
// than the current one. Engagement events (OPENED, CLICKED) outrank delivery
// outcomes because they prove the message reached an inbox; COMPLAINED
// outranks CLICKED so a complaint is never masked by engagement.
var statusRank = map[EmailStatus]int{
	StatusScheduled:        0,
	StatusQueued:           1,
	StatusSent:             2,
	StatusDeliveryDelayed:  3,
	StatusBounced:          4,
	StatusRejected:         5,
	StatusRenderingFailure: 6,
	StatusDelivered:        7,
	StatusOpened:           8,
	StatusClicked:          9,
	StatusComplained:       10,
	StatusFailed:           11,
	StatusCancelled:        12,
	StatusSuppressed:       13,
}

// Rank returns the precedence rank of a status, or -1 for unknown values.
func (s EmailStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is one of the canonical statuses.
func (s EmailStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// ShouldAdvance reports whether a message whose latestStatus is current
// (nil when unset) should move to next.
func ShouldAdvance(current *EmailStatus, next EmailStatus) bool {
	if current == nil {
		return true
	}
	return next.Rank() > current.Rank()
}

// EmailCategory selects the dispatch lane for a message.
type EmailCategory string

const (
	CategoryTransactional EmailCategory = "transactional"
	CategoryMarketing     EmailCategory = "marketing"
)

// Attachment is a base64-encoded file carried with a message until it is
// handed to the provider.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Email is one outbound email instance: a transactional send or one campaign
// recipient's copy. LatestStatus is denormalized from the event log and is
// mutated only by status ingestion.
type Email struct {
	ID              string       `json:"id" db:"id"`
	TeamID          int64        `json:"team_id" db:"team_id"`
	To              []string     `json:"to" db:"to"`
	CC              []string     `json:"cc,omitempty" db:"cc"`
	BCC             []string     `json:"bcc,omitempty" db:"bcc"`
	ReplyTo         []string     `json:"reply_to,omitempty" db:"reply_to"`
	From            string       `json:"from" db:"from"`
	Subject         string       `json:"subject" db:"subject"`
	HTML            string       `json:"html,omitempty" db:"html"`
	Text            string       `json:"text,omitempty" db:"text"`
	Attachments     []Attachment `json:"attachments,omitempty" db:"attachments"`
	DomainID        int64        `json:"domain_id" db:"domain_id"`
	CampaignID      string       `json:"campaign_id,omitempty" db:"campaign_id"`
	ContactID       string       `json:"contact_id,omitempty" db:"contact_id"`
	ProviderEmailID string       `json:"provider_email_id,omitempty" db:"provider_email_id"`
	LatestStatus    *EmailStatus `json:"latest_status,omitempty" db:"latest_status"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// Category returns the dispatch category of the message. Campaign copies are
// marketing mail; everything else is transactional.
func (e *Email) Category() EmailCategory {
	if e.CampaignID != "" {
		return CategoryMarketing
	}
	return CategoryTransactional
}

// EmailEvent is one immutable, timestamped delivery-lifecycle fact about a
// message. Events are append-only: the full log is the audit trail even
// though Email carries a denormalized latest pointer.
type EmailEvent struct {
	ID        string          `json:"id" db:"id"`
	EmailID   string          `json:"email_id" db:"email_id"`
	Status    EmailStatus     `json:"status" db:"status"`
	Data      map[string]any  `json:"data,omitempty" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
