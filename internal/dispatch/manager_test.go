package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// memQueue is an in-memory Queue for lane tests.
type memQueue struct {
	mu      sync.Mutex
	pending []*Job
	claimed map[string]*Job
	done    []string
	failed  map[string]string
	pushes  int
}

func newMemQueue() *memQueue {
	return &memQueue{claimed: make(map[string]*Job), failed: make(map[string]string)}
}

func (q *memQueue) Push(_ context.Context, job *Job, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	q.pushes++
	return nil
}

func (q *memQueue) Claim(_ context.Context, region string, category domain.EmailCategory) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.pending {
		if job.Region == region && job.Category == category {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.claimed[job.ID] = job
			return job, nil
		}
	}
	return nil, nil
}

func (q *memQueue) MarkDone(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, jobID)
	q.done = append(q.done, jobID)
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, jobID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, jobID)
	q.failed[jobID] = reason
	return nil
}

func (q *memQueue) Cancel(_ context.Context, emailID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.pending {
		if job.EmailID == emailID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (q *memQueue) Reschedule(_ context.Context, emailID string, _ time.Duration) error {
	return nil
}

// memStore serves messages for dispatch.
type memStore struct {
	mu       sync.Mutex
	emails   map[string]*domain.Email
	domains  map[int64]*domain.SendingDomain
	accepted map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		emails:   make(map[string]*domain.Email),
		domains:  make(map[int64]*domain.SendingDomain),
		accepted: make(map[string]string),
	}
}

func (s *memStore) GetForDispatch(_ context.Context, emailID string) (*domain.Email, *domain.SendingDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[emailID]
	if !ok {
		return nil, nil, errors.New("email not found")
	}
	return e, s.domains[e.DomainID], nil
}

func (s *memStore) MarkAccepted(_ context.Context, emailID, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[emailID] = providerID
	return nil
}

// fakeSender records sends and optionally fails.
type fakeSender struct {
	mu    sync.Mutex
	sent  []*OutboundEmail
	err   error
}

func (f *fakeSender) Send(_ context.Context, msg *OutboundEmail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "provider-" + msg.EmailID, nil
}

// fakeRecorder captures status writes.
type fakeRecorder struct {
	mu         sync.Mutex
	failures   map[string]string
	cancelled  []string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{failures: make(map[string]string)}
}

func (r *fakeRecorder) RecordFailure(_ context.Context, emailID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[emailID] = reason
	return nil
}

func (r *fakeRecorder) RecordCancellation(_ context.Context, emailID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, emailID)
	return nil
}

func newTestManager(q Queue, s EmailStore, snd Sender, rec StatusRecorder) *Manager {
	return NewManager(q, s, snd, rec, 5*time.Millisecond)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestSplitQuota(t *testing.T) {
	tests := []struct {
		quota, pct                 int
		transactional, marketing   int
	}{
		{10, 30, 3, 7},
		{1, 100, 1, 1},
		{100, 0, 1, 100},
		{7, 50, 3, 4},
	}
	for _, tt := range tests {
		gotT, gotM := SplitQuota(tt.quota, tt.pct)
		if gotT != tt.transactional || gotM != tt.marketing {
			t.Errorf("SplitQuota(%d, %d) = (%d, %d), want (%d, %d)",
				tt.quota, tt.pct, gotT, gotM, tt.transactional, tt.marketing)
		}
	}
}

func TestConfigure_CreatesLanePair(t *testing.T) {
	m := newTestManager(newMemQueue(), newMemStore(), &fakeSender{}, newFakeRecorder())
	defer m.Stop()

	m.Configure("us-east-1", 10, 30)

	if got := m.Concurrency("us-east-1", domain.CategoryTransactional); got != 3 {
		t.Errorf("transactional concurrency = %d, want 3", got)
	}
	if got := m.Concurrency("us-east-1", domain.CategoryMarketing); got != 7 {
		t.Errorf("marketing concurrency = %d, want 7", got)
	}
}

func TestConfigure_ResizeKeepsQueue(t *testing.T) {
	q := newMemQueue()
	m := newTestManager(q, newMemStore(), &fakeSender{err: errors.New("hold")}, newFakeRecorder())
	defer m.Stop()

	m.Configure("eu-west-1", 4, 50)
	before := m.lanes[laneKey{"eu-west-1", domain.CategoryMarketing}]

	m.Configure("eu-west-1", 20, 50)

	if got := m.Concurrency("eu-west-1", domain.CategoryMarketing); got != 10 {
		t.Errorf("marketing concurrency after resize = %d, want 10", got)
	}
	after := m.lanes[laneKey{"eu-west-1", domain.CategoryMarketing}]
	if before != after {
		t.Error("reconfigure must resize the existing lane, not recreate it")
	}
}

func TestConfigure_MinimumOneWorker(t *testing.T) {
	m := newTestManager(newMemQueue(), newMemStore(), &fakeSender{}, newFakeRecorder())
	defer m.Stop()

	m.Configure("us-east-1", 1, 100)

	if got := m.Concurrency("us-east-1", domain.CategoryTransactional); got != 1 {
		t.Errorf("transactional concurrency = %d, want 1", got)
	}
	if got := m.Concurrency("us-east-1", domain.CategoryMarketing); got != 1 {
		t.Errorf("marketing concurrency floored to %d, want 1", got)
	}
}

func TestEnqueue_UnconfiguredRegion(t *testing.T) {
	m := newTestManager(newMemQueue(), newMemStore(), &fakeSender{}, newFakeRecorder())
	defer m.Stop()

	err := m.Enqueue(context.Background(), "e1", "ap-south-1", domain.CategoryTransactional, "", 0)
	if !errors.Is(err, ErrQueueNotConfigured) {
		t.Errorf("expected ErrQueueNotConfigured, got %v", err)
	}
}

func TestWorker_SendsAndRecordsProviderID(t *testing.T) {
	q := newMemQueue()
	store := newMemStore()
	sender := &fakeSender{}
	m := newTestManager(q, store, sender, newFakeRecorder())
	defer m.Stop()

	store.domains[1] = &domain.SendingDomain{ID: 1, Region: "us-east-1", Status: domain.DomainSuccess, ClickTracking: true}
	store.emails["e1"] = &domain.Email{ID: "e1", DomainID: 1, To: []string{"to@example.com"}, From: "hi@acme.com", Subject: "hello"}

	m.Configure("us-east-1", 2, 50)
	if err := m.Enqueue(context.Background(), "e1", "us-east-1", domain.CategoryTransactional, "", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.accepted["e1"] != ""
	})

	if store.accepted["e1"] != "provider-e1" {
		t.Errorf("provider id = %q, want provider-e1", store.accepted["e1"])
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 || !sender.sent[0].ClickTracking {
		t.Error("expected one send carrying the domain's tracking configuration")
	}
}

func TestWorker_ProviderFailureIsTerminal(t *testing.T) {
	q := newMemQueue()
	store := newMemStore()
	rec := newFakeRecorder()
	m := newTestManager(q, store, &fakeSender{err: errors.New("throttled")}, rec)
	defer m.Stop()

	store.domains[1] = &domain.SendingDomain{ID: 1, Region: "us-east-1", Status: domain.DomainSuccess}
	store.emails["e1"] = &domain.Email{ID: "e1", DomainID: 1, To: []string{"to@example.com"}}

	m.Configure("us-east-1", 2, 50)
	_ = m.Enqueue(context.Background(), "e1", "us-east-1", domain.CategoryTransactional, "", 0)

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.failures["e1"] != ""
	})

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) != 0 {
		t.Error("failed job must not be requeued")
	}
	if len(q.failed) != 1 {
		t.Errorf("expected 1 failed job, got %d", len(q.failed))
	}
}

func TestWorker_SkipsCancelledMessage(t *testing.T) {
	q := newMemQueue()
	store := newMemStore()
	sender := &fakeSender{}
	m := newTestManager(q, store, sender, newFakeRecorder())
	defer m.Stop()

	cancelled := domain.StatusCancelled
	store.domains[1] = &domain.SendingDomain{ID: 1, Region: "us-east-1"}
	store.emails["e1"] = &domain.Email{ID: "e1", DomainID: 1, LatestStatus: &cancelled}

	m.Configure("us-east-1", 2, 50)
	_ = m.Enqueue(context.Background(), "e1", "us-east-1", domain.CategoryTransactional, "", 0)

	waitFor(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.done) == 1
	})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 0 {
		t.Error("cancelled message must not be sent")
	}
}

func TestCancel_UnclaimedJob(t *testing.T) {
	q := newMemQueue()
	rec := newFakeRecorder()
	m := newTestManager(q, newMemStore(), &fakeSender{}, rec)
	defer m.Stop()

	// No lane configured: the job sits in the queue unclaimed.
	q.pending = append(q.pending, &Job{ID: "j1", EmailID: "e1", Region: "us-east-1", Category: domain.CategoryTransactional})

	if err := m.Cancel(context.Background(), "e1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(rec.cancelled) != 1 || rec.cancelled[0] != "e1" {
		t.Error("expected CANCELLED recorded for e1")
	}

	if err := m.Cancel(context.Background(), "e1"); !errors.Is(err, ErrJobNotCancellable) {
		t.Errorf("second cancel should fail with ErrJobNotCancellable, got %v", err)
	}
}

func TestWorker_MarketingJobsAreBulk(t *testing.T) {
	q := newMemQueue()
	store := newMemStore()
	sender := &fakeSender{}
	m := newTestManager(q, store, sender, newFakeRecorder())
	defer m.Stop()

	store.domains[1] = &domain.SendingDomain{ID: 1, Region: "us-east-1"}
	store.emails["e1"] = &domain.Email{ID: "e1", DomainID: 1, CampaignID: "c1", To: []string{"to@example.com"}}

	m.Configure("us-east-1", 2, 50)
	_ = m.Enqueue(context.Background(), "e1", "us-east-1", domain.CategoryMarketing, "https://app.example.com/unsubscribe?id=x&hash=y", 0)

	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	msg := sender.sent[0]
	if !msg.IsBulk {
		t.Error("marketing sends must carry bulk precedence")
	}
	if msg.UnsubscribeURL == "" {
		t.Error("marketing sends must carry the unsubscribe URL")
	}
}
