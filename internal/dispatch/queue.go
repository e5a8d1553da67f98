package dispatch

import (
	"context"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Job is one queued send. Jobs are keyed by the message id, so re-enqueueing
// the same message is idempotent at the queue level.
type Job struct {
	ID             string
	EmailID        string
	Region         string
	Category       domain.EmailCategory
	UnsubscribeURL string
	Attempts       int
	ScheduledAt    time.Time
}

// Queue is the durable backing store for dispatch lanes. Multiple dispatcher
// instances may share one queue; Claim must hand each job to at most one
// worker.
type Queue interface {
	// Push appends a job, optionally delayed. It returns once the job is
	// durably queued, not once it is sent.
	Push(ctx context.Context, job *Job, delay time.Duration) error

	// Claim pops the next due job for the lane, or nil when the lane is
	// empty. A claimed job is invisible to other workers.
	Claim(ctx context.Context, region string, category domain.EmailCategory) (*Job, error)

	// MarkDone removes a claimed job.
	MarkDone(ctx context.Context, jobID string) error

	// MarkFailed records a terminal send failure on a claimed job. Failed
	// jobs are not retried by this subsystem.
	MarkFailed(ctx context.Context, jobID string, reason string) error

	// Cancel removes a scheduled-but-unclaimed job for the message. Returns
	// false when the job was already claimed or absent.
	Cancel(ctx context.Context, emailID string) (bool, error)

	// Reschedule moves an unclaimed job's due time.
	Reschedule(ctx context.Context, emailID string, delay time.Duration) error
}

// EmailStore loads messages for dispatch and records provider acceptance.
type EmailStore interface {
	// GetForDispatch returns the message and its sending domain.
	GetForDispatch(ctx context.Context, emailID string) (*domain.Email, *domain.SendingDomain, error)

	// MarkAccepted records the provider message id and drops the stored
	// attachment payloads now that the provider holds the content.
	MarkAccepted(ctx context.Context, emailID, providerEmailID string) error
}

// Sender hands a fully-resolved message to the external mail provider and
// returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg *OutboundEmail) (string, error)
}

// StatusRecorder applies dispatch-originated status events through the
// ingestion path, which is the only writer of latestStatus.
type StatusRecorder interface {
	RecordFailure(ctx context.Context, emailID, reason string) error
	RecordCancellation(ctx context.Context, emailID string) error
}

// OutboundEmail is the provider-facing view of a message, resolved from the
// message row and its domain's tracking configuration.
type OutboundEmail struct {
	EmailID        string
	To             []string
	CC             []string
	BCC            []string
	ReplyTo        []string
	From           string
	Subject        string
	HTML           string
	Text           string
	Attachments    []domain.Attachment
	Region         string
	ClickTracking  bool
	OpenTracking   bool
	IsBulk         bool
	UnsubscribeURL string
}
