package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Sentinel errors for the dispatch layer.
var (
	ErrQueueNotConfigured = fmt.Errorf("dispatch lane not configured for region")
	ErrJobNotCancellable  = fmt.Errorf("job already claimed or absent")
)

type laneKey struct {
	region   string
	category domain.EmailCategory
}

// Manager owns every dispatch lane. Configure creates or resizes lane pairs;
// Enqueue routes messages to the right lane.
type Manager struct {
	queue    Queue
	store    EmailStore
	sender   Sender
	recorder StatusRecorder

	pollInterval time.Duration

	mu    sync.Mutex
	lanes map[laneKey]*lane
	ctx   context.Context
	stop  context.CancelFunc

	totalSent    int64
	totalFailed  int64
	totalSkipped int64
}

// NewManager creates a dispatch manager. Lanes are created by Configure.
func NewManager(queue Queue, store EmailStore, sender Sender, recorder StatusRecorder, pollInterval time.Duration) *Manager {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		queue:        queue,
		store:        store,
		sender:       sender,
		recorder:     recorder,
		pollInterval: pollInterval,
		lanes:        make(map[laneKey]*lane),
		ctx:          ctx,
		stop:         cancel,
	}
}

// SplitQuota divides a region's provider send quota between the
// transactional and marketing lanes. Each side is floored to one worker so
// a lane never stalls outright.
func SplitQuota(quota, transactionalPct int) (transactional, marketing int) {
	transactional = quota * transactionalPct / 100
	marketing = quota - transactional
	if transactional < 1 {
		transactional = 1
	}
	if marketing < 1 {
		marketing = 1
	}
	return transactional, marketing
}

// Configure creates the lane pair for a region on first call. On subsequent
// calls it only adjusts worker concurrency: the queues are untouched, so
// in-flight jobs are undisturbed.
func (m *Manager) Configure(region string, quota, transactionalPct int) {
	transactional, marketing := SplitQuota(quota, transactionalPct)

	m.mu.Lock()
	defer m.mu.Unlock()

	for category, n := range map[domain.EmailCategory]int{
		domain.CategoryTransactional: transactional,
		domain.CategoryMarketing:     marketing,
	} {
		key := laneKey{region: region, category: category}
		l, ok := m.lanes[key]
		if !ok {
			log.Printf("[dispatch] creating %s lane for region %s with concurrency %d", category, region, n)
			l = newLane(m.ctx, m, region, category)
			m.lanes[key] = l
		} else {
			log.Printf("[dispatch] resizing %s lane for region %s to concurrency %d", category, region, n)
		}
		l.resize(n)
	}
}

// ConfigureFromSettings rebuilds every lane from persisted per-region rate
// settings. Called on process start.
func (m *Manager) ConfigureFromSettings(settings []domain.SendRateSetting) {
	for _, s := range settings {
		m.Configure(s.Region, s.RateLimit, s.TransactionalPct)
	}
}

// Concurrency returns the current worker count for a lane, or 0 when the
// lane does not exist.
func (m *Manager) Concurrency(region string, category domain.EmailCategory) int {
	m.mu.Lock()
	l, ok := m.lanes[laneKey{region: region, category: category}]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return l.concurrency()
}

// Enqueue appends a send job to the lane for (region, category). It returns
// once the job is durably queued.
func (m *Manager) Enqueue(ctx context.Context, emailID, region string, category domain.EmailCategory, unsubscribeURL string, delay time.Duration) error {
	m.mu.Lock()
	_, ok := m.lanes[laneKey{region: region, category: category}]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrQueueNotConfigured, region, category)
	}

	return m.queue.Push(ctx, &Job{
		ID:             uuid.New().String(),
		EmailID:        emailID,
		Region:         region,
		Category:       category,
		UnsubscribeURL: unsubscribeURL,
	}, delay)
}

// Cancel removes a scheduled-but-unclaimed job and marks the message
// CANCELLED. Once a worker has claimed the job, cancellation has no effect.
func (m *Manager) Cancel(ctx context.Context, emailID string) error {
	ok, err := m.queue.Cancel(ctx, emailID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobNotCancellable
	}
	return m.recorder.RecordCancellation(ctx, emailID)
}

// Reschedule moves an unclaimed job's due time.
func (m *Manager) Reschedule(ctx context.Context, emailID string, delay time.Duration) error {
	return m.queue.Reschedule(ctx, emailID, delay)
}

// Stop cancels all lane workers and waits for them to drain.
func (m *Manager) Stop() {
	m.stop()
	m.mu.Lock()
	lanes := make([]*lane, 0, len(m.lanes))
	for _, l := range m.lanes {
		lanes = append(lanes, l)
	}
	m.mu.Unlock()
	for _, l := range lanes {
		l.stop()
	}
	log.Printf("[dispatch] stopped; sent=%d failed=%d skipped=%d",
		atomic.LoadInt64(&m.totalSent), atomic.LoadInt64(&m.totalFailed), atomic.LoadInt64(&m.totalSkipped))
}

// Stats returns cumulative dispatch counters.
func (m *Manager) Stats() map[string]int64 {
	return map[string]int64{
		"total_sent":    atomic.LoadInt64(&m.totalSent),
		"total_failed":  atomic.LoadInt64(&m.totalFailed),
		"total_skipped": atomic.LoadInt64(&m.totalSkipped),
	}
}
