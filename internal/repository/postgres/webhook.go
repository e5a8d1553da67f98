package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/service/webhook"
)

// WebhookRepo implements webhook.Repository against PostgreSQL.
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed webhook repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

func (r *WebhookRepo) Create(ctx context.Context, w *domain.Webhook) error {
	events := make([]string, len(w.Events))
	for i, e := range w.Events {
		events[i] = string(e)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, team_id, url, secret, events, domain_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, w.ID, w.TeamID, w.URL, w.Secret, pq.Array(events), w.DomainID)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepo) Delete(ctx context.Context, teamID int64, webhookID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM webhooks WHERE id = $1 AND team_id = $2`, webhookID, teamID,
	)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func (r *WebhookRepo) ListByTeam(ctx context.Context, teamID int64) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, url, secret, events, domain_id, created_at
		FROM webhooks
		WHERE team_id = $1
		ORDER BY created_at ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		var w domain.Webhook
		var events []string
		var domainID sql.NullInt64
		if err := rows.Scan(&w.ID, &w.TeamID, &w.URL, &w.Secret, pq.Array(&events), &domainID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		w.Events = make([]domain.EmailStatus, len(events))
		for i, e := range events {
			w.Events[i] = domain.EmailStatus(e)
		}
		if domainID.Valid {
			id := domainID.Int64
			w.DomainID = &id
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
