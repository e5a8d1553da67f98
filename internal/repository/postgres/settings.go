package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// SettingsRepo stores per-region send rate settings. Dispatch lanes are
// runtime-only; these rows are what rebuilds them on boot.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed rate settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

func (r *SettingsRepo) List(ctx context.Context) ([]domain.SendRateSetting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT region, rate_limit, transactional_pct FROM send_rate_settings ORDER BY region`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rate settings: %w", err)
	}
	defer rows.Close()

	var out []domain.SendRateSetting
	for rows.Next() {
		var s domain.SendRateSetting
		if err := rows.Scan(&s.Region, &s.RateLimit, &s.TransactionalPct); err != nil {
			return nil, fmt.Errorf("scan rate setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.SendRateSetting) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO send_rate_settings (region, rate_limit, transactional_pct, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (region)
		DO UPDATE SET rate_limit = $2, transactional_pct = $3, updated_at = NOW()
	`, s.Region, s.RateLimit, s.TransactionalPct)
	if err != nil {
		return fmt.Errorf("upsert rate setting: %w", err)
	}
	return nil
}
