package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// processJob attempts one send. Provider failures are terminal for the
// message: a FAILED event is recorded and the job is not retried.
func (m *Manager) processJob(ctx context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	email, sdomain, err := m.store.GetForDispatch(ctx, job.EmailID)
	if err != nil {
		// The message row is gone or unreadable; nothing to send.
		logger.Warn("dispatch: message not loadable, skipping", "email_id", job.EmailID, "error", err)
		atomic.AddInt64(&m.totalSkipped, 1)
		_ = m.queue.MarkDone(ctx, job.ID)
		return
	}

	if email.LatestStatus != nil && *email.LatestStatus == domain.StatusCancelled {
		atomic.AddInt64(&m.totalSkipped, 1)
		_ = m.queue.MarkDone(ctx, job.ID)
		return
	}

	msg := &OutboundEmail{
		EmailID:        email.ID,
		To:             email.To,
		CC:             email.CC,
		BCC:            email.BCC,
		ReplyTo:        email.ReplyTo,
		From:           email.From,
		Subject:        email.Subject,
		HTML:           email.HTML,
		Text:           email.Text,
		Attachments:    email.Attachments,
		Region:         sdomain.Region,
		ClickTracking:  sdomain.ClickTracking,
		OpenTracking:   sdomain.OpenTracking,
		IsBulk:         job.Category == domain.CategoryMarketing,
		UnsubscribeURL: job.UnsubscribeURL,
	}

	providerID, err := m.sender.Send(ctx, msg)
	if err != nil {
		atomic.AddInt64(&m.totalFailed, 1)
		logger.Error("dispatch: provider send failed", "email_id", email.ID, "error", err)
		if recErr := m.recorder.RecordFailure(ctx, email.ID, err.Error()); recErr != nil {
			logger.Error("dispatch: failed to record FAILED status", "email_id", email.ID, "error", recErr)
		}
		_ = m.queue.MarkFailed(ctx, job.ID, err.Error())
		return
	}

	atomic.AddInt64(&m.totalSent, 1)
	if err := m.store.MarkAccepted(ctx, email.ID, providerID); err != nil {
		// The provider accepted the message but the id write failed; a
		// reprocessed job would resend. At-least-once, by contract.
		logger.Error("dispatch: failed to record provider id", "email_id", email.ID, "provider_id", providerID, "error", err)
	}
	_ = m.queue.MarkDone(ctx, job.ID)
}
