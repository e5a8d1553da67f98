package campaign

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

type mockRepo struct {
	campaigns map[string]*domain.Campaign
	contacts  map[string]*domain.Contact
	byBook    map[string][]string
	domains   map[string]*domain.SendingDomain
	emails    []*domain.Email
	unsubs    map[string]int
	updates   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		campaigns: make(map[string]*domain.Campaign),
		contacts:  make(map[string]*domain.Contact),
		byBook:    make(map[string][]string),
		domains:   make(map[string]*domain.SendingDomain),
		unsubs:    make(map[string]int),
	}
}

func (m *mockRepo) GetCampaign(_ context.Context, teamID int64, id string) (*domain.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok || c.TeamID != teamID {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

func (m *mockRepo) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	m.campaigns[c.ID] = c
	m.updates++
	return nil
}

func (m *mockRepo) ListSubscribedContacts(_ context.Context, bookID string) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, id := range m.byBook[bookID] {
		c := m.contacts[id]
		if c.Subscribed {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockRepo) GetContact(_ context.Context, id string) (*domain.Contact, error) {
	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) SetContactSubscription(_ context.Context, id string, subscribed bool, reason *domain.UnsubscribeReason) error {
	c, ok := m.contacts[id]
	if !ok {
		return ErrContactNotFound
	}
	c.Subscribed = subscribed
	c.UnsubscribeReason = reason
	return nil
}

func (m *mockRepo) IncrementUnsubscribed(_ context.Context, campaignID string) error {
	m.unsubs[campaignID]++
	return nil
}

func (m *mockRepo) DecrementUnsubscribed(_ context.Context, campaignID string) error {
	if m.unsubs[campaignID] > 0 {
		m.unsubs[campaignID]--
	}
	return nil
}

func (m *mockRepo) CreateEmail(_ context.Context, email *domain.Email) error {
	m.emails = append(m.emails, email)
	return nil
}

func (m *mockRepo) GetDomainByName(_ context.Context, teamID int64, name string) (*domain.SendingDomain, error) {
	d, ok := m.domains[name]
	if !ok || d.TeamID != teamID {
		return nil, ErrDomainMismatch
	}
	return d, nil
}

// fakeRenderer counts renders so tests can prove the document is rendered
// once per fan-out, not once per contact.
type fakeRenderer struct{ calls int }

func (f *fakeRenderer) Render(content string) (string, error) {
	f.calls++
	return "<p>Hi {{ firstName }}</p>", nil
}

type mockDispatcher struct {
	enqueued map[string]string // emailID -> unsubscribe URL
	lanes    map[string]domain.EmailCategory
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{enqueued: make(map[string]string), lanes: make(map[string]domain.EmailCategory)}
}

func (m *mockDispatcher) Enqueue(_ context.Context, emailID, _ string, category domain.EmailCategory, unsubURL string, _ time.Duration) error {
	m.enqueued[emailID] = unsubURL
	m.lanes[emailID] = category
	return nil
}

type mockChecker struct{ blocked map[string]bool }

func (m *mockChecker) CheckMany(_ context.Context, _ int64, emails []string) map[string]bool {
	out := make(map[string]bool, len(emails))
	for _, e := range emails {
		out[e] = m.blocked[e]
	}
	return out
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	renderer *fakeRenderer
	disp     *mockDispatcher
	checker  *mockChecker
	campaign *domain.Campaign
	alice    *domain.Contact
	bob      *domain.Contact
}

func newFixture() *fixture {
	repo := newMockRepo()
	renderer := &fakeRenderer{}
	disp := newMockDispatcher()
	checker := &mockChecker{blocked: make(map[string]bool)}
	svc := NewService(repo, renderer, disp, checker, "test-secret", "https://app.example.com/")

	repo.domains["acme.com"] = &domain.SendingDomain{ID: 1, TeamID: 7, Name: "acme.com", Region: "us-east-1", Status: domain.DomainSuccess}

	alice := &domain.Contact{ID: uuid.New().String(), ContactBookID: "book1", Email: "alice@example.com", FirstName: "Alice", Subscribed: true}
	bob := &domain.Contact{ID: uuid.New().String(), ContactBookID: "book1", Email: "bob@example.com", FirstName: "Bob", Subscribed: true}
	repo.contacts[alice.ID] = alice
	repo.contacts[bob.ID] = bob
	repo.byBook["book1"] = []string{alice.ID, bob.ID}

	c := &domain.Campaign{
		ID: uuid.New().String(), TeamID: 7, Name: "Launch",
		From: "news@acme.com", Subject: "Hello {{ firstName }}",
		Content: `{"doc":"launch"}`, ContactBookID: "book1",
		Status: domain.CampaignDraft,
	}
	repo.campaigns[c.ID] = c

	return &fixture{svc: svc, repo: repo, renderer: renderer, disp: disp, checker: checker, campaign: c, alice: alice, bob: bob}
}

func TestSend_PersonalizesPerContact(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Send(context.Background(), 7, f.campaign.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f.renderer.calls != 1 {
		t.Errorf("content rendered %d times, want once per fan-out", f.renderer.calls)
	}
	if len(f.repo.emails) != 2 {
		t.Fatalf("created %d messages, want 2", len(f.repo.emails))
	}
	for _, e := range f.repo.emails {
		if e.CampaignID != c.ID {
			t.Error("message must reference its campaign")
		}
		want := "Hi Alice"
		if e.To[0] == "bob@example.com" {
			want = "Hi Bob"
		}
		if !strings.Contains(e.HTML, want) {
			t.Errorf("html %q missing personalized greeting %q", e.HTML, want)
		}
		if strings.Contains(e.Subject, "{{") {
			t.Errorf("subject %q not personalized", e.Subject)
		}
		if f.disp.lanes[e.ID] != domain.CategoryMarketing {
			t.Error("campaign copies must queue on the marketing lane")
		}
	}
	if c.Status != domain.CampaignSent || c.Total != 2 {
		t.Errorf("campaign finished with status %s total %d", c.Status, c.Total)
	}
}

func TestSend_SuppressedContactRecordedNotQueued(t *testing.T) {
	f := newFixture()
	f.checker.blocked["bob@example.com"] = true

	c, err := f.svc.Send(context.Background(), 7, f.campaign.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var bobMsg *domain.Email
	for _, e := range f.repo.emails {
		if e.To[0] == "bob@example.com" {
			bobMsg = e
		}
	}
	if bobMsg == nil {
		t.Fatal("suppressed contact still gets a message row")
	}
	if *bobMsg.LatestStatus != domain.StatusSuppressed {
		t.Errorf("suppressed copy status = %s, want SUPPRESSED", *bobMsg.LatestStatus)
	}
	if _, queued := f.disp.enqueued[bobMsg.ID]; queued {
		t.Error("suppressed copy must not be queued")
	}
	if c.Total != 2 {
		t.Errorf("total = %d; suppressed copies still count toward the roster", c.Total)
	}
}

func TestSend_FiltersSuppressedCC(t *testing.T) {
	f := newFixture()
	f.campaign.CC = []string{"watch@acme.com", "blocked@acme.com"}
	f.checker.blocked["blocked@acme.com"] = true

	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, e := range f.repo.emails {
		if len(e.CC) != 1 || e.CC[0] != "watch@acme.com" {
			t.Errorf("cc = %v, want suppressed address filtered out", e.CC)
		}
	}
}

func TestSend_UnsubscribeLinkIsVerifiable(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var link string
	for _, u := range f.disp.enqueued {
		link = u
		break
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("unsubscribe link unparseable: %v", err)
	}
	q := parsed.Query()
	contact, campaignID, err := f.svc.VerifyToken(context.Background(), q.Get("id"), q.Get("hash"))
	if err != nil {
		t.Fatalf("VerifyToken on generated link: %v", err)
	}
	if campaignID != f.campaign.ID {
		t.Errorf("token campaign = %s, want %s", campaignID, f.campaign.ID)
	}
	if contact.Email != f.alice.Email && contact.Email != f.bob.Email {
		t.Errorf("token resolved unexpected contact %s", contact.Email)
	}
}

func TestSend_ValidationErrors(t *testing.T) {
	f := newFixture()

	f.campaign.Content = ""
	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); !errors.Is(err, ErrCampaignNoContent) {
		t.Errorf("expected ErrCampaignNoContent, got %v", err)
	}

	f.campaign.Content = "doc"
	f.campaign.ContactBookID = ""
	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); !errors.Is(err, ErrCampaignNoList) {
		t.Errorf("expected ErrCampaignNoList, got %v", err)
	}

	f.campaign.ContactBookID = "book1"
	f.repo.domains["acme.com"].Status = domain.DomainPending
	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); !errors.Is(err, ErrDomainNotVerified) {
		t.Errorf("expected ErrDomainNotVerified, got %v", err)
	}
}

type fakeLock struct {
	free     bool
	released bool
}

func (l *fakeLock) Acquire(_ context.Context) (bool, error) { return l.free, nil }
func (l *fakeLock) Release(_ context.Context) error         { l.released = true; return nil }

func TestSend_LockHeldElsewhere(t *testing.T) {
	f := newFixture()
	f.svc.UseLockFactory(func(string) Lock { return &fakeLock{free: false} })

	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); !errors.Is(err, ErrSendInProgress) {
		t.Errorf("expected ErrSendInProgress, got %v", err)
	}
	if len(f.disp.enqueued) != 0 {
		t.Error("nothing may queue while another fan-out holds the lock")
	}
}

func TestSend_LockReleasedAfterFanout(t *testing.T) {
	f := newFixture()
	lock := &fakeLock{free: true}
	f.svc.UseLockFactory(func(string) Lock { return lock })

	if _, err := f.svc.Send(context.Background(), 7, f.campaign.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !lock.released {
		t.Error("lock must be released after fan-out completes")
	}
}

func TestUnsubscribe_IdempotentCounter(t *testing.T) {
	f := newFixture()
	id := unsubscribeID(f.alice.ID, f.campaign.ID)
	hash := f.svc.sign(id)

	contact, err := f.svc.Unsubscribe(context.Background(), id, hash)
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if contact.Subscribed {
		t.Error("contact should be unsubscribed")
	}
	if contact.UnsubscribeReason == nil || *contact.UnsubscribeReason != domain.UnsubscribedByLink {
		t.Error("unsubscribe reason should record the link origin")
	}

	// Second click: success, counter untouched.
	if _, err := f.svc.Unsubscribe(context.Background(), id, hash); err != nil {
		t.Fatalf("repeat Unsubscribe: %v", err)
	}
	if got := f.repo.unsubs[f.campaign.ID]; got != 1 {
		t.Errorf("unsubscribe counter = %d, want 1", got)
	}
}

func TestUnsubscribe_BadSignature(t *testing.T) {
	f := newFixture()
	id := unsubscribeID(f.alice.ID, f.campaign.ID)

	if _, err := f.svc.Unsubscribe(context.Background(), id, "forged"); !errors.Is(err, ErrInvalidUnsubscribeSignature) {
		t.Errorf("expected ErrInvalidUnsubscribeSignature, got %v", err)
	}
	if !f.repo.contacts[f.alice.ID].Subscribed {
		t.Error("forged signature must not flip subscription state")
	}
}

func TestResubscribe(t *testing.T) {
	f := newFixture()
	id := unsubscribeID(f.alice.ID, f.campaign.ID)
	hash := f.svc.sign(id)

	if _, err := f.svc.Unsubscribe(context.Background(), id, hash); err != nil {
		t.Fatal(err)
	}
	contact, err := f.svc.Resubscribe(context.Background(), id, hash)
	if err != nil {
		t.Fatalf("Resubscribe: %v", err)
	}
	if !contact.Subscribed || contact.UnsubscribeReason != nil {
		t.Error("resubscribe should restore subscription and clear the reason")
	}
	if got := f.repo.unsubs[f.campaign.ID]; got != 0 {
		t.Errorf("counter = %d; flipping back must reverse the unsubscribe", got)
	}

	// Resubscribing an already-subscribed contact changes nothing.
	if _, err := f.svc.Resubscribe(context.Background(), id, hash); err != nil {
		t.Fatal(err)
	}
	if got := f.repo.unsubs[f.campaign.ID]; got != 0 {
		t.Errorf("counter = %d after repeat, want 0", got)
	}
}
