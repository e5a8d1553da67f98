package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/service/ingest"
	"github.com/unsend-dev/unsend-sub000/internal/service/sending"
)

// EmailRepo is the message store: it backs the send path, dispatch and
// status ingestion.
type EmailRepo struct{ db *sql.DB }

// NewEmailRepo creates a Postgres-backed message repository.
func NewEmailRepo(db *sql.DB) *EmailRepo { return &EmailRepo{db: db} }

const emailColumns = `
	id, team_id, "to", cc, bcc, reply_to, "from", subject,
	COALESCE(html,''), COALESCE(text,''), attachments,
	domain_id, COALESCE(campaign_id,''), COALESCE(contact_id,''),
	COALESCE(provider_email_id,''), latest_status, created_at, updated_at`

func scanEmail(row interface{ Scan(...interface{}) error }) (*domain.Email, error) {
	e := &domain.Email{}
	var attachments []byte
	var latest sql.NullString
	err := row.Scan(
		&e.ID, &e.TeamID, pq.Array(&e.To), pq.Array(&e.CC), pq.Array(&e.BCC),
		pq.Array(&e.ReplyTo), &e.From, &e.Subject, &e.HTML, &e.Text, &attachments,
		&e.DomainID, &e.CampaignID, &e.ContactID, &e.ProviderEmailID,
		&latest, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &e.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if latest.Valid {
		s := domain.EmailStatus(latest.String)
		e.LatestStatus = &s
	}
	return e, nil
}

func (r *EmailRepo) CreateEmail(ctx context.Context, email *domain.Email) error {
	var attachments interface{}
	if len(email.Attachments) > 0 {
		raw, err := json.Marshal(email.Attachments)
		if err != nil {
			return fmt.Errorf("encode attachments: %w", err)
		}
		attachments = raw
	}
	var latest interface{}
	if email.LatestStatus != nil {
		latest = string(*email.LatestStatus)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create email: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails
			(id, team_id, "to", cc, bcc, reply_to, "from", subject, html, text,
			 attachments, domain_id, campaign_id, contact_id, latest_status,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, NULLIF($13,''), NULLIF($14,''), $15, NOW(), NOW())
	`, email.ID, email.TeamID, pq.Array(email.To), pq.Array(email.CC),
		pq.Array(email.BCC), pq.Array(email.ReplyTo), email.From, email.Subject,
		email.HTML, email.Text, attachments, email.DomainID,
		email.CampaignID, email.ContactID, latest)
	if err != nil {
		return fmt.Errorf("create email: %w", err)
	}

	if email.LatestStatus != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO email_events (id, email_id, status, created_at)
			VALUES (gen_random_uuid(), $1, $2, NOW())
		`, email.ID, string(*email.LatestStatus))
		if err != nil {
			return fmt.Errorf("create initial event: %w", err)
		}
	}
	return tx.Commit()
}

func (r *EmailRepo) GetEmail(ctx context.Context, teamID int64, emailID string) (*domain.Email, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = $1 AND team_id = $2`,
		emailID, teamID,
	)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, sending.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email: %w", err)
	}
	return e, nil
}

func (r *EmailRepo) GetEmailByID(ctx context.Context, emailID string) (*domain.Email, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = $1`, emailID,
	)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email by id: %w", err)
	}
	return e, nil
}

func (r *EmailRepo) GetEmailByProviderID(ctx context.Context, providerEmailID string) (*domain.Email, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE provider_email_id = $1`, providerEmailID,
	)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email by provider id: %w", err)
	}
	return e, nil
}

// GetForDispatch loads the message together with its sending domain.
func (r *EmailRepo) GetForDispatch(ctx context.Context, emailID string) (*domain.Email, *domain.SendingDomain, error) {
	e, err := r.GetEmailByID(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	d := &domain.SendingDomain{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, region, status, click_tracking, open_tracking, created_at
		FROM domains WHERE id = $1
	`, e.DomainID).Scan(&d.ID, &d.TeamID, &d.Name, &d.Region, &d.Status, &d.ClickTracking, &d.OpenTracking, &d.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("get sending domain: %w", err)
	}
	return e, d, nil
}

// MarkAccepted stores the provider id and drops attachment payloads; the
// provider holds the content from here on.
func (r *EmailRepo) MarkAccepted(ctx context.Context, emailID, providerEmailID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE emails
		SET provider_email_id = $2, attachments = NULL, updated_at = NOW()
		WHERE id = $1
	`, emailID, providerEmailID)
	if err != nil {
		return fmt.Errorf("mark accepted: %w", err)
	}
	return nil
}

// SetProviderEmailID backfills the provider id for messages whose first
// events beat the dispatch worker's write. Never overwrites a stored id.
func (r *EmailRepo) SetProviderEmailID(ctx context.Context, emailID, providerEmailID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE emails
		SET provider_email_id = $2, updated_at = NOW()
		WHERE id = $1 AND provider_email_id IS NULL
	`, emailID, providerEmailID)
	if err != nil {
		return fmt.Errorf("set provider email id: %w", err)
	}
	return nil
}

func (r *EmailRepo) ListEvents(ctx context.Context, emailID string) ([]domain.EmailEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email_id, status, data, created_at
		FROM email_events
		WHERE email_id = $1
		ORDER BY created_at ASC
	`, emailID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailEvent
	for rows.Next() {
		var ev domain.EmailEvent
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.EmailID, &ev.Status, &data, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *EmailRepo) AppendEvent(ctx context.Context, ev *domain.EmailEvent) error {
	var data interface{}
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		data = raw
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_events (id, email_id, status, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.EmailID, string(ev.Status), data, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *EmailRepo) HasEvent(ctx context.Context, emailID string, status domain.EmailStatus) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM email_events WHERE email_id = $1 AND status = $2)`,
		emailID, string(status),
	).Scan(&exists)
	return exists, err
}

// AdvanceStatus moves latestStatus forward under a row lock, so concurrent
// provider events serialize and only the highest-precedence one sticks.
func (r *EmailRepo) AdvanceStatus(ctx context.Context, emailID string, next domain.EmailStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin advance status: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT latest_status FROM emails WHERE id = $1 FOR UPDATE`, emailID,
	).Scan(&latest)
	if err == sql.ErrNoRows {
		return false, ingest.ErrMessageNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock email: %w", err)
	}

	var current *domain.EmailStatus
	if latest.Valid {
		s := domain.EmailStatus(latest.String)
		current = &s
	}
	if !domain.ShouldAdvance(current, next) {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE emails SET latest_status = $2, updated_at = NOW() WHERE id = $1`,
		emailID, string(next),
	); err != nil {
		return false, fmt.Errorf("advance status: %w", err)
	}
	return true, tx.Commit()
}

// campaignCounters whitelists counter column names.
var campaignCounters = map[string]string{
	"sent":         "sent",
	"delivered":    "delivered",
	"opened":       "opened",
	"clicked":      "clicked",
	"bounced":      "bounced",
	"hard_bounced": "hard_bounced",
	"complained":   "complained",
}

func (r *EmailRepo) IncrementCampaignCounter(ctx context.Context, campaignID, counter string) error {
	col, ok := campaignCounters[counter]
	if !ok {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, col, col),
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	return nil
}

func (r *EmailRepo) UnsubscribeContact(ctx context.Context, contactID string, reason domain.UnsubscribeReason) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET subscribed = false, unsubscribe_reason = $2, updated_at = NOW()
		WHERE id = $1
	`, contactID, string(reason))
	if err != nil {
		return fmt.Errorf("unsubscribe contact: %w", err)
	}
	return nil
}

func (r *EmailRepo) GetDomainByName(ctx context.Context, teamID int64, name string) (*domain.SendingDomain, error) {
	d := &domain.SendingDomain{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, region, status, click_tracking, open_tracking, created_at
		FROM domains WHERE team_id = $1 AND LOWER(name) = LOWER($2)
	`, teamID, name).Scan(&d.ID, &d.TeamID, &d.Name, &d.Region, &d.Status, &d.ClickTracking, &d.OpenTracking, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sending.ErrDomainMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (r *EmailRepo) UpdateScheduledAt(ctx context.Context, teamID int64, emailID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE emails SET scheduled_at = $3, updated_at = NOW()
		WHERE id = $1 AND team_id = $2
	`, emailID, teamID, at)
	if err != nil {
		return fmt.Errorf("update scheduled at: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sending.ErrMessageNotFound
	}
	return nil
}
