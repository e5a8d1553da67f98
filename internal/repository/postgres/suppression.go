package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) Upsert(ctx context.Context, s *domain.Suppression) (*domain.Suppression, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO suppressions (id, team_id, email, reason, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (team_id, email)
		DO UPDATE SET reason = $4, source = $5, updated_at = NOW()
		RETURNING id, team_id, email, reason, COALESCE(source,''), created_at, updated_at
	`, s.ID, s.TeamID, s.Email, s.Reason, s.Source)

	out := &domain.Suppression{}
	if err := row.Scan(&out.ID, &out.TeamID, &out.Email, &out.Reason, &out.Source, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert suppression: %w", err)
	}
	return out, nil
}

func (r *SuppressionRepo) Delete(ctx context.Context, teamID int64, email string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM suppressions WHERE team_id = $1 AND email = $2`,
		teamID, email,
	)
	if err != nil {
		return fmt.Errorf("delete suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) Exists(ctx context.Context, teamID int64, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM suppressions WHERE team_id = $1 AND email = $2)`,
		teamID, email,
	).Scan(&exists)
	return exists, err
}

func (r *SuppressionRepo) ExistsMany(ctx context.Context, teamID int64, emails []string) (map[string]bool, error) {
	out := make(map[string]bool, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM suppressions WHERE team_id = $1 AND email = ANY($2)`,
		teamID, pq.Array(emails),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk suppression check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out[email] = true
	}
	return out, rows.Err()
}

func (r *SuppressionRepo) List(ctx context.Context, teamID int64, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	where := `WHERE team_id = $1`
	args := []interface{}{teamID}
	idx := 2

	if f.Search != "" {
		where += fmt.Sprintf(" AND email LIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.Reason != "" {
		where += fmt.Sprintf(" AND reason = $%d", idx)
		args = append(args, f.Reason)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM suppressions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	orderBy := "created_at"
	switch f.SortBy {
	case "email", "reason", "created_at":
		orderBy = f.SortBy
	}
	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}

	q := fmt.Sprintf(`
		SELECT id, team_id, email, reason, COALESCE(source,''), created_at, updated_at
		FROM suppressions %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, orderBy, dir, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		var s domain.Suppression
		if err := rows.Scan(&s.ID, &s.TeamID, &s.Email, &s.Reason, &s.Source, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *SuppressionRepo) CountByReason(ctx context.Context, teamID int64) (map[domain.SuppressionReason]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reason, COUNT(*) FROM suppressions WHERE team_id = $1 GROUP BY reason`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("suppression stats: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.SuppressionReason]int)
	for rows.Next() {
		var reason domain.SuppressionReason
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
