package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// lane is one (region, category) worker pool over the shared durable queue.
// Concurrency is adjusted by starting or cancelling individual workers;
// queue identity never changes, so in-flight jobs are undisturbed by
// reconfiguration.
type lane struct {
	region   string
	category domain.EmailCategory

	m *Manager

	mu      sync.Mutex
	workers []context.CancelFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newLane(parent context.Context, m *Manager, region string, category domain.EmailCategory) *lane {
	ctx, cancel := context.WithCancel(parent)
	return &lane{
		region:   region,
		category: category,
		m:        m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// resize grows or shrinks the pool to n workers.
func (l *lane) resize(n int) {
	if n < 1 {
		n = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.workers) < n {
		ctx, cancel := context.WithCancel(l.ctx)
		l.workers = append(l.workers, cancel)
		l.wg.Add(1)
		go l.worker(ctx)
	}
	for len(l.workers) > n {
		last := len(l.workers) - 1
		l.workers[last]()
		l.workers = l.workers[:last]
	}
}

// concurrency returns the current worker count.
func (l *lane) concurrency() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.workers)
}

// stop cancels every worker and waits for them to drain.
func (l *lane) stop() {
	l.cancel()
	l.wg.Wait()
}

// worker claims and processes jobs until its context is cancelled. Claim
// errors back off briefly; an empty queue is polled at the configured
// interval.
func (l *lane) worker(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := l.m.queue.Claim(ctx, l.region, l.category)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.m.pollInterval):
			}
			continue
		}

		l.m.processJob(ctx, job)
	}
}
