package webhook

import (
	"context"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Repository persists webhook endpoint configuration.
type Repository interface {
	// Create inserts a webhook.
	Create(ctx context.Context, w *domain.Webhook) error

	// Delete removes a team's webhook, or returns ErrNotFound.
	Delete(ctx context.Context, teamID int64, webhookID string) error

	// ListByTeam returns every webhook a team has configured.
	ListByTeam(ctx context.Context, teamID int64) ([]domain.Webhook, error)
}

// SubscriptionCache is the TTL cache in front of webhook lookups. Satisfied
// by cache.Cache.
type SubscriptionCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, key string) error
}
