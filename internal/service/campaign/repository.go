package campaign

import (
	"context"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Repository persists campaigns, contacts and per-recipient message rows.
type Repository interface {
	// GetCampaign returns a team's campaign, or ErrCampaignNotFound.
	GetCampaign(ctx context.Context, teamID int64, campaignID string) (*domain.Campaign, error)

	// UpdateCampaign writes back rendered html, status and totals.
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error

	// ListSubscribedContacts returns the contact book's subscribed members.
	ListSubscribedContacts(ctx context.Context, contactBookID string) ([]domain.Contact, error)

	// GetContact returns a contact by id, or ErrContactNotFound.
	GetContact(ctx context.Context, contactID string) (*domain.Contact, error)

	// SetContactSubscription flips a contact's subscription state.
	SetContactSubscription(ctx context.Context, contactID string, subscribed bool, reason *domain.UnsubscribeReason) error

	// IncrementUnsubscribed bumps the campaign's unsubscribe counter.
	IncrementUnsubscribed(ctx context.Context, campaignID string) error

	// DecrementUnsubscribed reverses one unsubscribe, flooring at zero.
	DecrementUnsubscribed(ctx context.Context, campaignID string) error

	// CreateEmail inserts one recipient's message row with its initial
	// status and the matching lifecycle event.
	CreateEmail(ctx context.Context, email *domain.Email) error

	// GetDomainByName resolves a team's sending domain by its DNS name, or
	// ErrDomainMismatch.
	GetDomainByName(ctx context.Context, teamID int64, name string) (*domain.SendingDomain, error)
}

// Renderer turns a campaign's editor document into HTML. Personalization
// variables are left in place for per-contact substitution.
type Renderer interface {
	Render(content string) (string, error)
}

// Dispatcher queues personalized messages on the marketing lane.
type Dispatcher interface {
	Enqueue(ctx context.Context, emailID, region string, category domain.EmailCategory, unsubscribeURL string, delay time.Duration) error
}

// BulkChecker screens the fan-out recipient set in one round trip.
type BulkChecker interface {
	CheckMany(ctx context.Context, teamID int64, emails []string) map[string]bool
}
