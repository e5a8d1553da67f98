package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/service/campaign"
	"github.com/unsend-dev/unsend-sub000/internal/service/sending"
)

// CampaignRepo implements campaign.Repository against PostgreSQL. Message
// inserts are shared with the message store.
type CampaignRepo struct {
	db     *sql.DB
	emails *EmailRepo
}

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo {
	return &CampaignRepo{db: db, emails: NewEmailRepo(db)}
}

func (r *CampaignRepo) GetCampaign(ctx context.Context, teamID int64, campaignID string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, "from", subject, reply_to, cc, bcc,
		       COALESCE(content,''), COALESCE(html,''), COALESCE(contact_book_id,''),
		       status, total, sent, delivered, opened, clicked, bounced,
		       hard_bounced, complained, unsubscribed, created_at, updated_at
		FROM campaigns
		WHERE id = $1 AND team_id = $2
	`, campaignID, teamID).Scan(
		&c.ID, &c.TeamID, &c.Name, &c.From, &c.Subject, pq.Array(&c.ReplyTo),
		pq.Array(&c.CC), pq.Array(&c.BCC), &c.Content, &c.HTML, &c.ContactBookID,
		&c.Status, &c.Total, &c.Sent, &c.Delivered, &c.Opened, &c.Clicked,
		&c.Bounced, &c.HardBounced, &c.Complained, &c.Unsubscribed,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET html = $2, status = $3, total = $4, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.HTML, c.Status, c.Total)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepo) ListSubscribedContacts(ctx context.Context, contactBookID string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_book_id, email, COALESCE(first_name,''), COALESCE(last_name,''),
		       subscribed, unsubscribe_reason, created_at, updated_at
		FROM contacts
		WHERE contact_book_id = $1 AND subscribed = true
		ORDER BY created_at ASC
	`, contactBookID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanContact(row interface{ Scan(...interface{}) error }) (*domain.Contact, error) {
	c := &domain.Contact{}
	var reason sql.NullString
	err := row.Scan(&c.ID, &c.ContactBookID, &c.Email, &c.FirstName, &c.LastName,
		&c.Subscribed, &reason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		r := domain.UnsubscribeReason(reason.String)
		c.UnsubscribeReason = &r
	}
	return c, nil
}

func (r *CampaignRepo) GetContact(ctx context.Context, contactID string) (*domain.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, contact_book_id, email, COALESCE(first_name,''), COALESCE(last_name,''),
		       subscribed, unsubscribe_reason, created_at, updated_at
		FROM contacts WHERE id = $1
	`, contactID)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) SetContactSubscription(ctx context.Context, contactID string, subscribed bool, reason *domain.UnsubscribeReason) error {
	var reasonVal interface{}
	if reason != nil {
		reasonVal = string(*reason)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET subscribed = $2, unsubscribe_reason = $3, updated_at = NOW()
		WHERE id = $1
	`, contactID, subscribed, reasonVal)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrContactNotFound
	}
	return nil
}

func (r *CampaignRepo) IncrementUnsubscribed(ctx context.Context, campaignID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET unsubscribed = unsubscribed + 1, updated_at = NOW() WHERE id = $1`,
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("increment unsubscribed: %w", err)
	}
	return nil
}

func (r *CampaignRepo) DecrementUnsubscribed(ctx context.Context, campaignID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET unsubscribed = GREATEST(unsubscribed - 1, 0), updated_at = NOW() WHERE id = $1`,
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("decrement unsubscribed: %w", err)
	}
	return nil
}

func (r *CampaignRepo) CreateEmail(ctx context.Context, email *domain.Email) error {
	return r.emails.CreateEmail(ctx, email)
}

func (r *CampaignRepo) GetDomainByName(ctx context.Context, teamID int64, name string) (*domain.SendingDomain, error) {
	d, err := r.emails.GetDomainByName(ctx, teamID, name)
	if errors.Is(err, sending.ErrDomainMismatch) {
		return nil, campaign.ErrDomainMismatch
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
