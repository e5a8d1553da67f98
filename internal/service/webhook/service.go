package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/cache"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

func teamKey(teamID int64) string {
	return fmt.Sprintf("webhooks:team:%d", teamID)
}

// Service owns webhook endpoint CRUD. Mutations invalidate the team's
// cached subscription list so the notifier sees them within one lookup.
type Service struct {
	repo  Repository
	cache SubscriptionCache
}

// NewService creates the webhook configuration service.
func NewService(repo Repository, c SubscriptionCache) *Service {
	return &Service{repo: repo, cache: c}
}

// Create registers a webhook endpoint. Each webhook gets its own randomly
// generated signing secret, returned once on the created record.
func (s *Service) Create(ctx context.Context, teamID int64, rawURL string, events []domain.EmailStatus, domainID *int64) (*domain.Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	for _, e := range events {
		if !e.Valid() {
			return nil, fmt.Errorf("%w: unknown event %q", ErrNoEvents, e)
		}
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating webhook secret: %w", err)
	}

	w := &domain.Webhook{
		ID:       uuid.New().String(),
		TeamID:   teamID,
		URL:      rawURL,
		Secret:   hex.EncodeToString(secret),
		Events:   events,
		DomainID: domainID,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	s.invalidate(ctx, teamID)
	logger.Info("webhook registered", "webhook_id", w.ID, "team_id", teamID, "events", len(events))
	return w, nil
}

// Delete removes a webhook endpoint.
func (s *Service) Delete(ctx context.Context, teamID int64, webhookID string) error {
	if err := s.repo.Delete(ctx, teamID, webhookID); err != nil {
		return err
	}
	s.invalidate(ctx, teamID)
	return nil
}

// List returns a team's webhooks, straight from storage.
func (s *Service) List(ctx context.Context, teamID int64) ([]domain.Webhook, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// cachedWebhook is the cache wire form. The API form of Webhook hides the
// signing secret; the notifier needs it, so the cache carries it explicitly.
type cachedWebhook struct {
	ID       string               `json:"id"`
	TeamID   int64                `json:"team_id"`
	URL      string               `json:"url"`
	Secret   string               `json:"secret"`
	Events   []domain.EmailStatus `json:"events"`
	DomainID *int64               `json:"domain_id,omitempty"`
}

func toCached(hooks []domain.Webhook) []cachedWebhook {
	out := make([]cachedWebhook, len(hooks))
	for i, w := range hooks {
		out[i] = cachedWebhook{ID: w.ID, TeamID: w.TeamID, URL: w.URL, Secret: w.Secret, Events: w.Events, DomainID: w.DomainID}
	}
	return out
}

func fromCached(hooks []cachedWebhook) []domain.Webhook {
	out := make([]domain.Webhook, len(hooks))
	for i, w := range hooks {
		out[i] = domain.Webhook{ID: w.ID, TeamID: w.TeamID, URL: w.URL, Secret: w.Secret, Events: w.Events, DomainID: w.DomainID}
	}
	return out
}

// subscriptions returns the team's webhooks through the cache.
func (s *Service) subscriptions(ctx context.Context, teamID int64) ([]domain.Webhook, error) {
	key := teamKey(teamID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var hooks []cachedWebhook
		if err := json.Unmarshal(raw, &hooks); err == nil {
			return fromCached(hooks), nil
		}
		// Unreadable cache entry: drop it and fall through to storage.
		s.invalidate(ctx, teamID)
	} else if err != cache.ErrMiss {
		logger.Warn("webhook cache read failed", "team_id", teamID, "error", err)
	}

	hooks, err := s.repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(toCached(hooks)); err == nil {
		if err := s.cache.Set(ctx, key, raw); err != nil {
			logger.Warn("webhook cache write failed", "team_id", teamID, "error", err)
		}
	}
	return hooks, nil
}

func (s *Service) invalidate(ctx context.Context, teamID int64) {
	if err := s.cache.Invalidate(ctx, teamKey(teamID)); err != nil {
		logger.Warn("webhook cache invalidation failed", "team_id", teamID, "error", err)
	}
}
