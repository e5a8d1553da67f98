package domain

import "time"

// UnsubscribeReason records why a contact stopped receiving campaign mail.
type UnsubscribeReason string

const (
	UnsubscribedByLink UnsubscribeReason = "UNSUBSCRIBED"
	UnsubscribedBounce UnsubscribeReason = "BOUNCED"
	UnsubscribedSpam   UnsubscribeReason = "COMPLAINED"
)

// Contact is one recipient in a contact book. Subscription state is flipped
// by the unsubscribe/subscribe flows triggered from campaign links and by
// bounce/complaint ingestion.
type Contact struct {
	ID                string             `json:"id" db:"id"`
	ContactBookID     string             `json:"contact_book_id" db:"contact_book_id"`
	Email             string             `json:"email" db:"email"`
	FirstName         string             `json:"first_name,omitempty" db:"first_name"`
	LastName          string             `json:"last_name,omitempty" db:"last_name"`
	Subscribed        bool               `json:"subscribed" db:"subscribed"`
	UnsubscribeReason *UnsubscribeReason `json:"unsubscribe_reason,omitempty" db:"unsubscribe_reason"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}
