package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// ProviderEvent is one parsed provider notification. The transport layer
// decodes the provider envelope; ingestion only sees this flattened form.
type ProviderEvent struct {
	// Type is the provider's event name, e.g. "Delivery" or "Bounce".
	Type string

	// ProviderEmailID is the provider's message id from the mail object.
	ProviderEmailID string

	// FallbackEmailID is our message id recovered from the embedded mail
	// header, for events that arrive before the provider id is stored.
	FallbackEmailID string

	// Timestamp is the provider-reported event time.
	Timestamp time.Time

	// Data is the raw event detail, stored verbatim on the lifecycle event.
	Data map[string]any

	// BounceType distinguishes "Permanent" from "Transient" bounces.
	BounceType string

	// Recipients lists the addresses a bounce or complaint applies to.
	Recipients []string
}

const permanentBounce = "Permanent"

// Service applies provider events to stored messages.
type Service struct {
	repo             Repository
	suppressor       Suppressor
	notifier         Notifier
	unsubscribeLinks string
}

// NewService wires ingestion to storage, the suppression registry and the
// outbound webhook notifier.
func NewService(repo Repository, suppressor Suppressor, notifier Notifier) *Service {
	return &Service{repo: repo, suppressor: suppressor, notifier: notifier}
}

// UseUnsubscribeBase teaches ingestion what the public unsubscribe links look
// like. Clicks on those links are real engagement for the provider but not
// for campaign analytics, so they are excluded from counters.
func (s *Service) UseUnsubscribeBase(baseURL string) {
	s.unsubscribeLinks = strings.TrimRight(baseURL, "/") + "/unsubscribe"
}

// Process applies one provider event: append it to the message's log,
// advance latestStatus if the event outranks it, and run the side effects
// (campaign counters, auto-suppression, webhook fan-out) the event implies.
func (s *Service) Process(ctx context.Context, ev *ProviderEvent) error {
	status, err := MapEventType(ev.Type)
	if err != nil {
		return err
	}

	email, err := s.lookup(ctx, ev)
	if err != nil {
		return err
	}

	// Provider notifications are at-least-once, and delay notifications
	// repeat while a message sits in the retry queue. One log entry per
	// status is enough; replays must not re-run counters, suppression or
	// webhooks.
	seen, err := s.repo.HasEvent(ctx, email.ID, status)
	if err != nil {
		return err
	}
	if seen {
		logger.Debug("duplicate provider event ignored", "email_id", email.ID, "status", string(status))
		return nil
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := s.repo.AppendEvent(ctx, &domain.EmailEvent{
		ID:        uuid.New().String(),
		EmailID:   email.ID,
		Status:    status,
		Data:      ev.Data,
		CreatedAt: ts,
	}); err != nil {
		return err
	}

	advanced, err := s.repo.AdvanceStatus(ctx, email.ID, status)
	if err != nil {
		return err
	}
	if !advanced {
		logger.Debug("status event logged without advancing", "email_id", email.ID, "status", string(status))
	}

	s.applyCampaignCounters(ctx, email, status, ev)
	s.applyFeedback(ctx, email, status, ev)
	s.notifier.Notify(email, status, ev.Data)
	return nil
}

// lookup resolves the message the event belongs to, preferring the provider
// id and falling back to the embedded message header.
func (s *Service) lookup(ctx context.Context, ev *ProviderEvent) (*domain.Email, error) {
	if ev.ProviderEmailID != "" {
		email, err := s.repo.GetEmailByProviderID(ctx, ev.ProviderEmailID)
		if err == nil {
			return email, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return nil, err
		}
	}
	if ev.FallbackEmailID != "" {
		email, err := s.repo.GetEmailByID(ctx, ev.FallbackEmailID)
		if err != nil {
			return nil, err
		}
		// The event raced the dispatch worker's provider-id write; repair
		// the mapping so later events resolve directly.
		if email.ProviderEmailID == "" && ev.ProviderEmailID != "" {
			if err := s.repo.SetProviderEmailID(ctx, email.ID, ev.ProviderEmailID); err != nil {
				logger.Error("failed to backfill provider id", "email_id", email.ID, "error", err)
			} else {
				email.ProviderEmailID = ev.ProviderEmailID
			}
		}
		return email, nil
	}
	return nil, ErrMessageNotFound
}

// applyCampaignCounters feeds campaign analytics. Callers only reach this
// for the first event of each status, so every counter moves once per unique
// status regardless of arrival order; hardBounced additionally tracks
// permanent bounces.
func (s *Service) applyCampaignCounters(ctx context.Context, email *domain.Email, status domain.EmailStatus, ev *ProviderEvent) {
	if email.CampaignID == "" {
		return
	}
	if status == domain.StatusClicked && s.isUnsubscribeClick(ev) {
		return
	}
	if counter := domain.CounterFor(status); counter != "" {
		if err := s.repo.IncrementCampaignCounter(ctx, email.CampaignID, counter); err != nil {
			logger.Error("failed to bump campaign counter", "campaign_id", email.CampaignID, "counter", counter, "error", err)
		}
	}
	if status == domain.StatusBounced && ev.BounceType == permanentBounce {
		if err := s.repo.IncrementCampaignCounter(ctx, email.CampaignID, "hard_bounced"); err != nil {
			logger.Error("failed to bump campaign counter", "campaign_id", email.CampaignID, "counter", "hard_bounced", "error", err)
		}
	}
}

// isUnsubscribeClick reports whether a click event's target is one of our
// own unsubscribe links.
func (s *Service) isUnsubscribeClick(ev *ProviderEvent) bool {
	if s.unsubscribeLinks == "" {
		return false
	}
	click, ok := ev.Data["click"].(map[string]any)
	if !ok {
		return false
	}
	link, _ := click["link"].(string)
	return strings.HasPrefix(link, s.unsubscribeLinks)
}

// applyFeedback handles the list-hygiene side effects of negative feedback:
// permanent bounces and complaints suppress the address and unsubscribe the
// originating contact. Failures are logged, never fatal to ingestion.
func (s *Service) applyFeedback(ctx context.Context, email *domain.Email, status domain.EmailStatus, ev *ProviderEvent) {
	var reason domain.SuppressionReason
	var unsubReason domain.UnsubscribeReason
	switch {
	case status == domain.StatusBounced && ev.BounceType == permanentBounce:
		reason, unsubReason = domain.ReasonHardBounce, domain.UnsubscribedBounce
	case status == domain.StatusComplained:
		reason, unsubReason = domain.ReasonComplaint, domain.UnsubscribedSpam
	default:
		return
	}

	recipients := ev.Recipients
	if len(recipients) == 0 {
		recipients = email.To
	}
	for _, rcpt := range recipients {
		if _, err := s.suppressor.Add(ctx, email.TeamID, rcpt, reason, "provider-feedback"); err != nil {
			logger.Error("failed to auto-suppress recipient", "email_id", email.ID, "error", err)
		}
	}

	if email.ContactID != "" {
		if err := s.repo.UnsubscribeContact(ctx, email.ContactID, unsubReason); err != nil {
			logger.Error("failed to auto-unsubscribe contact", "contact_id", email.ContactID, "error", err)
		}
	}
}

// RecordFailure appends a FAILED event for dispatch-side send failures.
func (s *Service) RecordFailure(ctx context.Context, emailID, reason string) error {
	return s.recordInternal(ctx, emailID, domain.StatusFailed, map[string]any{"error": reason})
}

// RecordCancellation appends a CANCELLED event for withdrawn messages.
func (s *Service) RecordCancellation(ctx context.Context, emailID string) error {
	return s.recordInternal(ctx, emailID, domain.StatusCancelled, nil)
}

func (s *Service) recordInternal(ctx context.Context, emailID string, status domain.EmailStatus, data map[string]any) error {
	if err := s.repo.AppendEvent(ctx, &domain.EmailEvent{
		ID:        uuid.New().String(),
		EmailID:   emailID,
		Status:    status,
		Data:      data,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	_, err := s.repo.AdvanceStatus(ctx, emailID, status)
	return err
}
