package campaign

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// Lock is a held distributed lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory builds a lock for a key.
type LockFactory func(key string) Lock

// Service owns campaign fan-out and the unsubscribe flow.
type Service struct {
	repo        Repository
	renderer    Renderer
	dispatcher  Dispatcher
	suppression BulkChecker
	engine      *liquid.Engine
	secret      string
	baseURL     string
	locks       LockFactory
}

// NewService wires the fan-out engine. secret signs unsubscribe links;
// baseURL is the public root those links point at.
func NewService(repo Repository, renderer Renderer, dispatcher Dispatcher, suppression BulkChecker, secret, baseURL string) *Service {
	return &Service{
		repo:        repo,
		renderer:    renderer,
		dispatcher:  dispatcher,
		suppression: suppression,
		engine:      liquid.NewEngine(),
		secret:      secret,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// UseLockFactory enables the per-campaign send lock. Without it, concurrent
// Send calls for the same campaign can double-queue contacts.
func (s *Service) UseLockFactory(f LockFactory) { s.locks = f }

func campaignFromDomain(from string) (string, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDomainMismatch, err)
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return "", ErrDomainMismatch
	}
	return strings.ToLower(addr.Address[at+1:]), nil
}

// personalize substitutes contact variables into a template fragment.
func (s *Service) personalize(tpl string, bindings liquid.Bindings) (string, error) {
	out, err := s.engine.ParseAndRenderString(tpl, bindings)
	if err != nil {
		return "", fmt.Errorf("personalizing template: %w", err)
	}
	return out, nil
}

// Send fans a campaign out to its contact book. The content document is
// rendered once; each subscribed contact gets a personalized copy queued on
// the marketing lane. Suppressed contacts get a SUPPRESSED message row and
// no queue entry, so the roster shows why they were skipped.
func (s *Service) Send(ctx context.Context, teamID int64, campaignID string) (*domain.Campaign, error) {
	if s.locks != nil {
		lock := s.locks("campaign-send:" + campaignID)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring send lock: %w", err)
		}
		if !ok {
			return nil, ErrSendInProgress
		}
		defer lock.Release(context.WithoutCancel(ctx))
	}

	c, err := s.repo.GetCampaign(ctx, teamID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Content == "" {
		return nil, ErrCampaignNoContent
	}
	if c.ContactBookID == "" {
		return nil, ErrCampaignNoList
	}

	name, err := campaignFromDomain(c.From)
	if err != nil {
		return nil, err
	}
	sdomain, err := s.repo.GetDomainByName(ctx, teamID, name)
	if err != nil {
		return nil, err
	}
	if !sdomain.Verified() {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotVerified, sdomain.Name)
	}

	html, err := s.renderer.Render(c.Content)
	if err != nil {
		return nil, fmt.Errorf("rendering campaign: %w", err)
	}
	c.HTML = html
	c.Status = domain.CampaignSending
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}

	contacts, err := s.repo.ListSubscribedContacts(ctx, c.ContactBookID)
	if err != nil {
		return nil, err
	}

	// One registry round trip for the whole fan-out: every contact plus the
	// campaign-level cc/bcc.
	toCheck := make([]string, 0, len(contacts)+len(c.CC)+len(c.BCC))
	for _, contact := range contacts {
		toCheck = append(toCheck, contact.Email)
	}
	toCheck = append(toCheck, c.CC...)
	toCheck = append(toCheck, c.BCC...)
	suppressed := s.suppression.CheckMany(ctx, teamID, toCheck)

	cc := filterSuppressed(c.CC, suppressed)
	bcc := filterSuppressed(c.BCC, suppressed)

	var queued, skipped int
	for _, contact := range contacts {
		email, err := s.buildMessage(c, &contact, sdomain, cc, bcc, suppressed[contact.Email])
		if err != nil {
			logger.Error("failed to personalize campaign copy", "campaign_id", c.ID, "contact_id", contact.ID, "error", err)
			continue
		}
		if err := s.repo.CreateEmail(ctx, email); err != nil {
			logger.Error("failed to persist campaign copy", "campaign_id", c.ID, "contact_id", contact.ID, "error", err)
			continue
		}
		if *email.LatestStatus == domain.StatusSuppressed {
			skipped++
			continue
		}
		unsubURL := s.UnsubscribeURL(contact.ID, c.ID)
		if err := s.dispatcher.Enqueue(ctx, email.ID, sdomain.Region, domain.CategoryMarketing, unsubURL, 0); err != nil {
			logger.Error("failed to queue campaign copy", "campaign_id", c.ID, "email_id", email.ID, "error", err)
			continue
		}
		queued++
	}

	c.Status = domain.CampaignSent
	c.Total = queued + skipped
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	logger.Info("campaign fan-out complete", "campaign_id", c.ID, "queued", queued, "suppressed", skipped)
	return c, nil
}

// buildMessage assembles one contact's personalized copy. A suppressed
// contact's row is created with status SUPPRESSED and never queued.
func (s *Service) buildMessage(c *domain.Campaign, contact *domain.Contact, sdomain *domain.SendingDomain, cc, bcc []string, isSuppressed bool) (*domain.Email, error) {
	bindings := liquid.Bindings{
		"email":          contact.Email,
		"firstName":      contact.FirstName,
		"lastName":       contact.LastName,
		"unsubscribeUrl": s.UnsubscribeURL(contact.ID, c.ID),
	}
	html, err := s.personalize(c.HTML, bindings)
	if err != nil {
		return nil, err
	}
	subject, err := s.personalize(c.Subject, bindings)
	if err != nil {
		return nil, err
	}

	status := domain.StatusQueued
	if isSuppressed {
		status = domain.StatusSuppressed
	}
	now := time.Now()
	return &domain.Email{
		ID:           uuid.New().String(),
		TeamID:       c.TeamID,
		To:           []string{contact.Email},
		CC:           cc,
		BCC:          bcc,
		ReplyTo:      c.ReplyTo,
		From:         c.From,
		Subject:      subject,
		HTML:         html,
		DomainID:     sdomain.ID,
		CampaignID:   c.ID,
		ContactID:    contact.ID,
		LatestStatus: &status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func filterSuppressed(emails []string, suppressed map[string]bool) []string {
	if len(emails) == 0 {
		return nil
	}
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if !suppressed[e] {
			out = append(out, e)
		}
	}
	return out
}
