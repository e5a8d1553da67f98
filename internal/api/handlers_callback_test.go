package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/service/ingest"
)

// ingestStore is a minimal in-memory ingest.Repository for callback tests.
type ingestStore struct {
	emails map[string]*domain.Email
	events int
}

func (s *ingestStore) GetEmailByProviderID(_ context.Context, pid string) (*domain.Email, error) {
	for _, e := range s.emails {
		if e.ProviderEmailID == pid {
			return e, nil
		}
	}
	return nil, ingest.ErrMessageNotFound
}

func (s *ingestStore) GetEmailByID(_ context.Context, id string) (*domain.Email, error) {
	e, ok := s.emails[id]
	if !ok {
		return nil, ingest.ErrMessageNotFound
	}
	return e, nil
}

func (s *ingestStore) SetProviderEmailID(_ context.Context, emailID, providerEmailID string) error {
	e, ok := s.emails[emailID]
	if !ok {
		return ingest.ErrMessageNotFound
	}
	e.ProviderEmailID = providerEmailID
	return nil
}

func (s *ingestStore) AppendEvent(_ context.Context, _ *domain.EmailEvent) error {
	s.events++
	return nil
}

func (s *ingestStore) HasEvent(_ context.Context, _ string, _ domain.EmailStatus) (bool, error) {
	return false, nil
}

func (s *ingestStore) AdvanceStatus(_ context.Context, emailID string, next domain.EmailStatus) (bool, error) {
	e, ok := s.emails[emailID]
	if !ok {
		return false, ingest.ErrMessageNotFound
	}
	if !domain.ShouldAdvance(e.LatestStatus, next) {
		return false, nil
	}
	e.LatestStatus = &next
	return true, nil
}

func (s *ingestStore) IncrementCampaignCounter(_ context.Context, _, _ string) error { return nil }
func (s *ingestStore) UnsubscribeContact(_ context.Context, _ string, _ domain.UnsubscribeReason) error {
	return nil
}

type noopSuppressor struct{}

func (noopSuppressor) Add(_ context.Context, _ int64, email string, reason domain.SuppressionReason, _ string) (*domain.Suppression, error) {
	return &domain.Suppression{Email: email, Reason: reason}, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ *domain.Email, _ domain.EmailStatus, _ map[string]any) {}

func callbackServer(store *ingestStore) *Server {
	svc := ingest.NewService(store, noopSuppressor{}, noopNotifier{})
	return NewServer(nil, nil, nil, nil, svc, nil, nil)
}

const deliveryEvent = `{
	"eventType": "Delivery",
	"mail": {
		"messageId": "p1",
		"timestamp": "2026-08-30T10:00:00Z",
		"headers": [{"name": "X-Unsend-Email-ID", "value": "e1"}]
	}
}`

func TestProviderCallback_RawEvent(t *testing.T) {
	queued := domain.StatusQueued
	store := &ingestStore{emails: map[string]*domain.Email{
		"e1": {ID: "e1", TeamID: 7, ProviderEmailID: "p1", LatestStatus: &queued},
	}}
	srv := callbackServer(store)

	req := httptest.NewRequest(http.MethodPost, "/api/ses_callback", strings.NewReader(deliveryEvent))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if *store.emails["e1"].LatestStatus != domain.StatusDelivered {
		t.Error("delivery event should advance the message")
	}
}

func TestProviderCallback_SNSEnvelope(t *testing.T) {
	queued := domain.StatusQueued
	store := &ingestStore{emails: map[string]*domain.Email{
		"e1": {ID: "e1", TeamID: 7, ProviderEmailID: "p1", LatestStatus: &queued},
	}}
	srv := callbackServer(store)

	envelope, _ := json.Marshal(map[string]string{
		"Type":    "Notification",
		"Message": deliveryEvent,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ses_callback", strings.NewReader(string(envelope)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if *store.emails["e1"].LatestStatus != domain.StatusDelivered {
		t.Error("enveloped delivery event should advance the message")
	}
}

func TestProviderCallback_UnknownMessageAcknowledged(t *testing.T) {
	store := &ingestStore{emails: map[string]*domain.Email{}}
	srv := callbackServer(store)

	req := httptest.NewRequest(http.MethodPost, "/api/ses_callback", strings.NewReader(deliveryEvent))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// 200 so the provider stops redelivering an event we can never apply.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unmatchable event", rec.Code)
	}
}

func TestProviderCallback_Garbage(t *testing.T) {
	srv := callbackServer(&ingestStore{emails: map[string]*domain.Email{}})

	req := httptest.NewRequest(http.MethodPost, "/api/ses_callback", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestParseProviderEvent_Bounce(t *testing.T) {
	raw := []byte(`{
		"eventType": "Bounce",
		"mail": {"messageId": "p1", "headers": [{"name": "x-unsend-email-id", "value": "e1"}]},
		"bounce": {"bounceType": "Permanent", "bouncedRecipients": [{"emailAddress": "user@example.com"}]}
	}`)
	event, payload, err := parseProviderEvent(raw)
	if err != nil {
		t.Fatalf("parseProviderEvent: %v", err)
	}
	if event.Type != "Bounce" || payload.EventType != "Bounce" {
		t.Errorf("type = %s", event.Type)
	}
	if event.BounceType != "Permanent" {
		t.Error("bounce type lost in parsing")
	}
	if event.FallbackEmailID != "e1" {
		t.Error("header match must be case-insensitive")
	}
	if len(event.Recipients) != 1 || event.Recipients[0] != "user@example.com" {
		t.Errorf("recipients = %v", event.Recipients)
	}
}
