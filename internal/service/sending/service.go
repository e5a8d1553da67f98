package sending

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// SendRequest is one transactional send. ScheduledAt in the future defers
// dispatch; nil or past means send now.
type SendRequest struct {
	TeamID      int64
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     []string
	From        string
	Subject     string
	HTML        string
	Text        string
	Attachments []domain.Attachment
	ScheduledAt *time.Time
}

// Service owns the transactional send path.
type Service struct {
	repo        Repository
	dispatcher  Dispatcher
	suppression SuppressionChecker
	recorder    FailureRecorder
}

// NewService wires the send path to its collaborators.
func NewService(repo Repository, dispatcher Dispatcher, suppression SuppressionChecker, recorder FailureRecorder) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, suppression: suppression, recorder: recorder}
}

// fromDomain extracts the DNS domain from a from header value, accepting
// both bare addresses and "Name <addr>" forms.
func fromDomain(from string) (string, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return "", ErrInvalidRequest
	}
	return strings.ToLower(addr.Address[at+1:]), nil
}

// Send validates, persists and queues one transactional message, returning
// the stored message. The returned message has already been handed to the
// transactional lane; delivery outcome arrives later via status ingestion.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*domain.Email, error) {
	if len(req.To) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrInvalidRequest)
	}

	name, err := fromDomain(req.From)
	if err != nil {
		return nil, err
	}
	sdomain, err := s.repo.GetDomainByName(ctx, req.TeamID, name)
	if err != nil {
		return nil, err
	}
	if !sdomain.Verified() {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotVerified, sdomain.Name)
	}

	for _, rcpt := range req.To {
		if s.suppression.IsSuppressed(ctx, req.TeamID, rcpt) {
			return nil, fmt.Errorf("%w: %s", ErrSuppressedRecipient, logger.RedactEmail(rcpt))
		}
	}

	now := time.Now()
	var delay time.Duration
	status := domain.StatusQueued
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		delay = req.ScheduledAt.Sub(now)
		status = domain.StatusScheduled
	}

	email := &domain.Email{
		ID:           uuid.New().String(),
		TeamID:       req.TeamID,
		To:           req.To,
		CC:           req.CC,
		BCC:          req.BCC,
		ReplyTo:      req.ReplyTo,
		From:         req.From,
		Subject:      req.Subject,
		HTML:         req.HTML,
		Text:         req.Text,
		Attachments:  req.Attachments,
		DomainID:     sdomain.ID,
		LatestStatus: &status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateEmail(ctx, email); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, email.ID, sdomain.Region, domain.CategoryTransactional, "", delay); err != nil {
		logger.Error("failed to queue message", "email_id", email.ID, "region", sdomain.Region, "error", err)
		if recErr := s.recorder.RecordFailure(ctx, email.ID, "failed to queue: "+err.Error()); recErr != nil {
			logger.Error("failed to record queue failure", "email_id", email.ID, "error", recErr)
		}
		return nil, fmt.Errorf("queueing message: %w", err)
	}

	logger.Info("message queued", "email_id", email.ID, "team_id", req.TeamID, "region", sdomain.Region, "status", string(status))
	return email, nil
}

// Get returns a message with its lifecycle event log.
func (s *Service) Get(ctx context.Context, teamID int64, emailID string) (*domain.Email, []domain.EmailEvent, error) {
	email, err := s.repo.GetEmail(ctx, teamID, emailID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.repo.ListEvents(ctx, emailID)
	if err != nil {
		return nil, nil, err
	}
	return email, events, nil
}

// Cancel withdraws a scheduled message that no worker has claimed yet.
func (s *Service) Cancel(ctx context.Context, teamID int64, emailID string) error {
	if _, err := s.repo.GetEmail(ctx, teamID, emailID); err != nil {
		return err
	}
	return s.dispatcher.Cancel(ctx, emailID)
}

// Reschedule moves a scheduled message's due time.
func (s *Service) Reschedule(ctx context.Context, teamID int64, emailID string, at time.Time) error {
	if _, err := s.repo.GetEmail(ctx, teamID, emailID); err != nil {
		return err
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	if err := s.dispatcher.Reschedule(ctx, emailID, delay); err != nil {
		return err
	}
	return s.repo.UpdateScheduledAt(ctx, teamID, emailID, at)
}
